package linear_model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// maxDLoss は1サンプルあたりの勾配のクリップ幅
const maxDLoss = 1e12

// SGDClassifier は確率的勾配降下法で学習する線形分類モデル
// scikit-learnのSGDClassifierと互換性を持つ
//
// 多クラスは one-vs-rest で、二値問題は並列に学習する。
type SGDClassifier struct {
	state *model.StateManager

	// ハイパーパラメータ
	loss               string  // "hinge", "log_loss", "modified_huber", "squared_hinge", "perceptron"
	penalty            string  // "l2", "none"
	alpha              float64 // 正則化の強さ
	fitIntercept       bool    // 切片を学習するか
	maxIter            int     // 最大エポック数
	tol                float64 // 停止判定の許容誤差（負なら無効）
	shuffle            bool    // 各エポックでデータをシャッフルするか
	verbose            int     // 詳細出力レベル
	randomState        int64   // 乱数シード（負なら非決定的）
	learningRate       string  // "optimal", "constant", "invscaling"
	eta0               float64 // constant / invscaling の初期学習率
	powerT             float64 // invscaling の指数
	earlyStopping      bool    // 検証データの正解率で停止するか
	validationFraction float64 // 早期停止に使う検証データの割合
	nIterNoChange      int     // 改善なしで停止するまでのエポック数
	nJobs              int     // 並列に学習する二値問題の数

	// 学習パラメータ
	coef      [][]float64 // 重み係数（二値なら1行）
	intercept []float64   // 切片
	classes   []float64   // クラスラベル
	nIter     int         // 実行されたエポック数の最大値
	t         int         // 重み更新の総回数（最後の二値問題）
}

// SGDOption は SGDClassifier の設定オプション
type SGDOption func(*SGDClassifier)

// NewSGDClassifier は新しいSGDClassifierを作成
func NewSGDClassifier(opts ...SGDOption) *SGDClassifier {
	s := &SGDClassifier{
		state:              model.NewStateManager(),
		loss:               "hinge",
		penalty:            "l2",
		alpha:              1e-4,
		fitIntercept:       true,
		maxIter:            1000,
		tol:                1e-3,
		shuffle:            true,
		randomState:        -1,
		learningRate:       "optimal",
		eta0:               0.0,
		powerT:             0.5,
		validationFraction: 0.1,
		nIterNoChange:      5,
		nJobs:              1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSGDLoss は損失関数を設定
func WithSGDLoss(loss string) SGDOption {
	return func(s *SGDClassifier) { s.loss = loss }
}

// WithSGDPenalty は正則化の種類を設定
func WithSGDPenalty(penalty string) SGDOption {
	return func(s *SGDClassifier) { s.penalty = penalty }
}

// WithSGDAlpha は正則化の強さを設定
func WithSGDAlpha(alpha float64) SGDOption {
	return func(s *SGDClassifier) { s.alpha = alpha }
}

// WithSGDFitIntercept は切片を学習するかを設定
func WithSGDFitIntercept(fit bool) SGDOption {
	return func(s *SGDClassifier) { s.fitIntercept = fit }
}

// WithSGDMaxIter は最大エポック数を設定
func WithSGDMaxIter(maxIter int) SGDOption {
	return func(s *SGDClassifier) { s.maxIter = maxIter }
}

// WithSGDTol は停止判定の許容誤差を設定。負の値で無効化
func WithSGDTol(tol float64) SGDOption {
	return func(s *SGDClassifier) { s.tol = tol }
}

// WithSGDShuffle はエポックごとのシャッフルを設定
func WithSGDShuffle(shuffle bool) SGDOption {
	return func(s *SGDClassifier) { s.shuffle = shuffle }
}

// WithSGDRandomState は乱数シードを設定
func WithSGDRandomState(seed int64) SGDOption {
	return func(s *SGDClassifier) { s.randomState = seed }
}

// WithSGDLearningRate は学習率スケジュールと初期学習率を設定
func WithSGDLearningRate(schedule string, eta0 float64) SGDOption {
	return func(s *SGDClassifier) {
		s.learningRate = schedule
		s.eta0 = eta0
	}
}

// WithSGDEarlyStopping は検証データによる早期停止を有効にする
func WithSGDEarlyStopping(validationFraction float64) SGDOption {
	return func(s *SGDClassifier) {
		s.earlyStopping = true
		s.validationFraction = validationFraction
	}
}

// WithSGDNIterNoChange は改善なしで停止するまでのエポック数を設定
func WithSGDNIterNoChange(n int) SGDOption {
	return func(s *SGDClassifier) { s.nIterNoChange = n }
}

// WithSGDVerbose はエポックごとのログ出力を設定
func WithSGDVerbose(verbose int) SGDOption {
	return func(s *SGDClassifier) { s.verbose = verbose }
}

// WithSGDNJobs は並列に学習する二値問題の数を設定
func WithSGDNJobs(n int) SGDOption {
	return func(s *SGDClassifier) { s.nJobs = n }
}

func (s *SGDClassifier) validate() error {
	if _, err := lossFor(s.loss); err != nil {
		return err
	}
	switch s.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", s.penalty)
	}
	switch s.learningRate {
	case "optimal":
		if s.alpha <= 0 {
			return errors.NewValidationError("alpha", "must be positive with learning_rate='optimal'", s.alpha)
		}
	case "constant", "invscaling":
		if s.eta0 <= 0 {
			return errors.NewValidationError("eta0", "must be positive", s.eta0)
		}
	default:
		return errors.NewValidationError("learning_rate", "must be 'optimal', 'constant' or 'invscaling'", s.learningRate)
	}
	if s.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", s.maxIter)
	}
	if s.earlyStopping && (s.validationFraction <= 0 || s.validationFraction >= 1) {
		return errors.NewValidationError("validation_fraction", "must be in (0, 1)", s.validationFraction)
	}
	if s.nIterNoChange < 1 {
		return errors.NewValidationError("n_iter_no_change", "must be at least 1", s.nIterNoChange)
	}
	return nil
}

// Fit はモデルを学習する
func (s *SGDClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SGDClassifier.Fit")

	if err := s.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXy("SGDClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("SGDClassifier.Fit", X); err != nil {
		return err
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "SGDClassifier.Fit: got class %v", classes)
	}
	codes, err := model.EncodeLabels("SGDClassifier.Fit", labels, classes)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear_model.SGDClassifier")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		"loss", s.loss,
	)

	s.state.Reset()
	s.classes = classes
	Xd := matutil.ToDense(X)
	lossFn, _ := lossFor(s.loss)

	// 二値問題ごとに独立した乱数ストリームを割り当てる
	nProblems := len(classes)
	if nProblems == 2 {
		nProblems = 1
	}
	master := newRand(s.randomState)
	seeds := make([]uint64, nProblems)
	for k := range seeds {
		seeds[k] = master.Uint64()
	}

	results := make([]*sgdResult, nProblems)
	err = parallel.ForEach(context.Background(), nProblems, s.nJobs, func(_ context.Context, k int) error {
		positive := k
		if nProblems == 1 {
			positive = 1
		}
		plog := logger
		if nProblems > 1 {
			plog = logger.With("ovr.class", classes[positive])
		}
		rng := rand.New(rand.NewPCG(seeds[k], seeds[k]))
		r, err := s.fitBinary(Xd, binaryTargets(codes, positive), lossFn, rng, plog)
		if err != nil {
			return err
		}
		results[k] = r
		return nil
	})
	if err != nil {
		return err
	}

	s.coef = make([][]float64, nProblems)
	s.intercept = make([]float64, nProblems)
	s.nIter = 0
	for k, r := range results {
		s.coef[k] = r.w
		s.intercept[k] = r.b
		s.nIter = max(s.nIter, r.epochs)
		s.t = r.t
	}

	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, log.EpochKey, s.nIter)
	return nil
}

type sgdResult struct {
	w      []float64
	b      float64
	epochs int
	t      int
}

// fitBinary は y ∈ {-1, +1} の二値問題を plain SGD で解く
func (s *SGDClassifier) fitBinary(X *mat.Dense, y []float64, lossFn sgdLoss, rng *rand.Rand, logger log.Logger) (*sgdResult, error) {
	nSamples, nFeatures := X.Dims()

	train := make([]int, nSamples)
	for i := range train {
		train[i] = i
	}
	var validation []int
	if s.earlyStopping {
		train, validation = stratifiedHoldout(y, s.validationFraction, rng)
		if len(validation) == 0 || len(train) == 0 {
			return nil, errors.NewValueError("SGDClassifier.Fit",
				"validation_fraction leaves an empty training or validation set")
		}
	}

	w := make([]float64, nFeatures)
	wscale := 1.0
	var b float64

	optimalInit := 0.0
	if s.learningRate == "optimal" {
		typw := math.Sqrt(1.0 / math.Sqrt(s.alpha))
		initialEta0 := typw / math.Max(1.0, lossFn.dloss(-typw, 1.0))
		optimalInit = 1.0 / (initialEta0 * s.alpha)
	}

	bestLoss := math.Inf(1)
	bestScore := math.Inf(-1)
	noImprovement := 0
	t := 1
	epoch := 0
	converged := false

	for epoch = 1; epoch <= s.maxIter; epoch++ {
		if s.shuffle {
			rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		}
		var sumLoss float64
		for _, i := range train {
			x := X.RawRowView(i)
			eta := s.eta(t, optimalInit)
			p := floats.Dot(w, x)*wscale + b
			sumLoss += lossFn.loss(p, y[i])

			update := -eta * errors.ClipValue(lossFn.dloss(p, y[i]), -maxDLoss, maxDLoss)
			if update != 0 {
				floats.AddScaled(w, update/wscale, x)
				if s.fitIntercept {
					b += update
				}
			}
			if s.penalty == "l2" {
				wscale *= math.Max(0, 1-eta*s.alpha)
				if wscale < 1e-9 {
					floats.Scale(wscale, w)
					wscale = 1
				}
			}
			t++
		}

		if s.verbose > 0 {
			norm := math.Abs(wscale) * floats.Norm(w, 2)
			logger.Info("sgd epoch",
				log.EpochKey, epoch,
				"norm", norm,
				"bias", b,
				"t", t-1,
				log.LossKey, sumLoss/float64(len(train)),
			)
		}

		if s.tol >= 0 {
			if s.earlyStopping {
				score := holdoutAccuracy(X, y, validation, w, wscale, b)
				if score < bestScore+s.tol {
					noImprovement++
				} else {
					noImprovement = 0
				}
				bestScore = math.Max(bestScore, score)
			} else {
				if sumLoss > bestLoss-s.tol*float64(len(train)) {
					noImprovement++
				} else {
					noImprovement = 0
				}
				bestLoss = math.Min(bestLoss, sumLoss)
			}
			if noImprovement >= s.nIterNoChange {
				converged = true
				if s.verbose > 0 {
					logger.Info("Convergence after epochs", log.EpochKey, epoch)
				}
				break
			}
		}
	}
	if epoch > s.maxIter {
		epoch = s.maxIter
	}
	if !converged && s.tol >= 0 {
		errors.Warn(errors.NewConvergenceWarning("SGDClassifier", epoch,
			"maximum number of iteration reached before convergence; consider increasing max_iter"))
	}

	floats.Scale(wscale, w)
	if err := errors.CheckVector("SGDClassifier.Fit", w, epoch); err != nil {
		return nil, err
	}
	return &sgdResult{w: w, b: b, epochs: epoch, t: t - 1}, nil
}

// eta は t 回目の更新の学習率
func (s *SGDClassifier) eta(t int, optimalInit float64) float64 {
	switch s.learningRate {
	case "constant":
		return s.eta0
	case "invscaling":
		return s.eta0 / math.Pow(float64(t), s.powerT)
	default:
		return 1.0 / (s.alpha * (optimalInit + float64(t) - 1))
	}
}

func holdoutAccuracy(X *mat.Dense, y []float64, rows []int, w []float64, wscale, b float64) float64 {
	correct := 0
	for _, i := range rows {
		p := floats.Dot(w, X.RawRowView(i))*wscale + b
		if (p > 0) == (y[i] > 0) {
			correct++
		}
	}
	return float64(correct) / float64(len(rows))
}

// stratifiedHoldout は ±1 ラベルの比率を保って検証用の行を取り分ける
// 検証データの件数は ceil(fraction * n)
func stratifiedHoldout(y []float64, fraction float64, rng *rand.Rand) (train, validation []int) {
	var pos, neg []int
	for i, v := range y {
		if v > 0 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	nVal := int(math.Ceil(fraction * float64(len(y))))
	nPos := int(math.Round(float64(nVal) * float64(len(pos)) / float64(len(y))))
	nPos = min(nPos, len(pos))
	nNeg := min(nVal-nPos, len(neg))

	for _, group := range []struct {
		idx []int
		n   int
	}{{pos, nPos}, {neg, nNeg}} {
		rng.Shuffle(len(group.idx), func(i, j int) { group.idx[i], group.idx[j] = group.idx[j], group.idx[i] })
		validation = append(validation, group.idx[:group.n]...)
		train = append(train, group.idx[group.n:]...)
	}
	return train, validation
}

// DecisionFunction は各超平面までの符号付き距離を返す
// 二値なら n×1、多クラスなら n×n_classes
func (s *SGDClassifier) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	return s.scores("DecisionFunction", X)
}

func (s *SGDClassifier) scores(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("SGDClassifier", method); err != nil {
		return nil, err
	}
	_, cols, err := model.CheckX("SGDClassifier."+method, X)
	if err != nil {
		return nil, err
	}
	if err := s.state.RequireFeatures("SGDClassifier."+method, cols); err != nil {
		return nil, err
	}
	return linearScores(X, s.coef, s.intercept), nil
}

// Predict はクラスラベルを予測する
func (s *SGDClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.scores("Predict", X)
	if err != nil {
		return nil, err
	}
	return labelsFromScores(scores, s.classes), nil
}

// PredictProba はクラス確率を返す。loss が log_loss か modified_huber のときのみ
func (s *SGDClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if s.loss != "log_loss" && s.loss != "modified_huber" {
		return nil, errors.NewModelError("SGDClassifier.PredictProba", "unsupported",
			errors.Newf("probability estimates are not available for loss=%q", s.loss))
	}
	scores, err := s.scores("PredictProba", X)
	if err != nil {
		return nil, err
	}
	rows, k := scores.Dims()
	prob := func(d float64) float64 {
		if s.loss == "log_loss" {
			return errors.Sigmoid(d)
		}
		return (errors.ClipValue(d, -1, 1) + 1) / 2
	}
	proba := mat.NewDense(rows, len(s.classes), nil)
	for i := 0; i < rows; i++ {
		row := proba.RawRowView(i)
		if k == 1 {
			p := prob(scores.At(i, 0))
			row[0], row[1] = 1-p, p
			continue
		}
		for c := range row {
			row[c] = prob(scores.At(i, c))
		}
		sum := floats.Sum(row)
		if sum == 0 {
			// 全クラスが -1 以下なら一様分布
			for c := range row {
				row[c] = 1 / float64(len(row))
			}
			continue
		}
		floats.Scale(1/sum, row)
	}
	return proba, nil
}

// Score は正解率を返す
func (s *SGDClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(s, X, y)
}

// Classes は学習時のクラスラベルを昇順で返す
func (s *SGDClassifier) Classes() []float64 {
	return append([]float64(nil), s.classes...)
}

// Coef は重み係数を返す
func (s *SGDClassifier) Coef() [][]float64 {
	out := make([][]float64, len(s.coef))
	for k := range s.coef {
		out[k] = append([]float64(nil), s.coef[k]...)
	}
	return out
}

// Intercept は切片を返す
func (s *SGDClassifier) Intercept() []float64 {
	return append([]float64(nil), s.intercept...)
}

// NIter は実行されたエポック数（二値問題の最大値）を返す
func (s *SGDClassifier) NIter() int {
	return s.nIter
}

// IsFitted は学習済みかを返す
func (s *SGDClassifier) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (s *SGDClassifier) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"loss":                s.loss,
		"penalty":             s.penalty,
		"alpha":               s.alpha,
		"fit_intercept":       s.fitIntercept,
		"max_iter":            s.maxIter,
		"tol":                 s.tol,
		"shuffle":             s.shuffle,
		"verbose":             s.verbose,
		"random_state":        s.randomState,
		"learning_rate":       s.learningRate,
		"eta0":                s.eta0,
		"power_t":             s.powerT,
		"early_stopping":      s.earlyStopping,
		"validation_fraction": s.validationFraction,
		"n_iter_no_change":    s.nIterNoChange,
		"n_jobs":              s.nJobs,
	}
}

// SetParams はハイパーパラメータを設定する
func (s *SGDClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "loss":
			s.loss, err = model.ParamString(key, value)
		case "penalty":
			s.penalty, err = model.ParamString(key, value)
		case "alpha":
			s.alpha, err = model.ParamFloat(key, value)
		case "fit_intercept":
			s.fitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			s.maxIter, err = model.ParamInt(key, value)
		case "tol":
			s.tol, err = model.ParamFloat(key, value)
		case "shuffle":
			s.shuffle, err = model.ParamBool(key, value)
		case "verbose":
			s.verbose, err = model.ParamInt(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			s.randomState = int64(seed)
		case "learning_rate":
			s.learningRate, err = model.ParamString(key, value)
		case "eta0":
			s.eta0, err = model.ParamFloat(key, value)
		case "power_t":
			s.powerT, err = model.ParamFloat(key, value)
		case "early_stopping":
			s.earlyStopping, err = model.ParamBool(key, value)
		case "validation_fraction":
			s.validationFraction, err = model.ParamFloat(key, value)
		case "n_iter_no_change":
			s.nIterNoChange, err = model.ParamInt(key, value)
		case "n_jobs":
			s.nJobs, err = model.ParamInt(key, value)
		default:
			return model.UnknownParam("SGDClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (s *SGDClassifier) Clone() model.SKLearnCompatible {
	clone := NewSGDClassifier()
	_ = clone.SetParams(s.GetParams(false))
	return clone
}

// String はモデルの文字列表現を返す
func (s *SGDClassifier) String() string {
	return fmt.Sprintf("SGDClassifier(loss=%s, penalty=%s, alpha=%g, max_iter=%d, early_stopping=%t)",
		s.loss, s.penalty, s.alpha, s.maxIter, s.earlyStopping)
}
