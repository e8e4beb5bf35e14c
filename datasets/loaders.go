package datasets

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

var irisFeatures = []string{
	"sepal length (cm)", "sepal width (cm)", "petal length (cm)", "petal width (cm)",
}

var breastCancerFeatures = func() []string {
	base := []string{
		"radius", "texture", "perimeter", "area", "smoothness",
		"compactness", "concavity", "concave points", "symmetry", "fractal dimension",
	}
	out := make([]string, 0, 30)
	for _, prefix := range []string{"mean", "error", "worst"} {
		for _, b := range base {
			if prefix == "error" {
				out = append(out, b+" error")
			} else {
				out = append(out, prefix+" "+b)
			}
		}
	}
	return out
}()

var diabetesFeatures = []string{"age", "sex", "bmi", "bp", "s1", "s2", "s3", "s4", "s5", "s6"}

// LoadIris loads iris.csv: 150 samples, 4 features, 3 classes.
func (l *Loader) LoadIris(ctx context.Context) (*Dataset, error) {
	ds, err := l.loadHeaderCSV(ctx, "iris.csv")
	if err != nil {
		return nil, err
	}
	ds.FeatureNames = irisFeatures
	ds.Descr = irisDescr
	return ds, nil
}

// LoadBreastCancer loads breast_cancer.csv: 569 samples, 30 features,
// target 0 = malignant, 1 = benign.
func (l *Loader) LoadBreastCancer(ctx context.Context) (*Dataset, error) {
	ds, err := l.loadHeaderCSV(ctx, "breast_cancer.csv")
	if err != nil {
		return nil, err
	}
	ds.FeatureNames = breastCancerFeatures
	ds.Descr = breastCancerDescr
	return ds, nil
}

// LoadDigits loads digits.csv.gz: 1797 images of 8×8 pixels with values 0..16.
func (l *Loader) LoadDigits(ctx context.Context) (*Dataset, error) {
	const name = "digits.csv.gz"
	raw, err := l.file(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := readRows(name, raw, true, ',')
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) != 65 {
		return nil, errors.NewValueError("LoadDigits", "expected 65 columns per row")
	}
	n := len(rows)
	data := mat.NewDense(n, 64, nil)
	target := mat.NewDense(n, 1, nil)
	for i, r := range rows {
		data.SetRow(i, r[:64])
		target.Set(i, 0, r[64])
	}
	names := make([]string, 0, 64)
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			names = append(names, fmt.Sprintf("pixel_%d_%d", r, c))
		}
	}
	targets := make([]string, 10)
	for k := range targets {
		targets[k] = strconv.Itoa(k)
	}
	logLoaded("digits", n, 64)
	return &Dataset{Data: data, Target: target, FeatureNames: names, TargetNames: targets, Descr: digitsDescr}, nil
}

// LoadDiabetes loads the diabetes regression dataset. Every feature is
// mean-centred and divided by std·sqrt(n_samples); the target is the raw
// disease progression one year after baseline.
func (l *Loader) LoadDiabetes(ctx context.Context) (*Dataset, error) {
	const dataName, targetName = "diabetes_data_raw.csv.gz", "diabetes_target.csv.gz"
	raw, err := l.file(ctx, dataName)
	if err != nil {
		return nil, err
	}
	rows, err := readRows(dataName, raw, true, ' ')
	if err != nil {
		return nil, err
	}
	rawTarget, err := l.file(ctx, targetName)
	if err != nil {
		return nil, err
	}
	trows, err := readRows(targetName, rawTarget, true, ' ')
	if err != nil {
		return nil, err
	}
	n := len(rows)
	if n == 0 || len(trows) != n {
		return nil, errors.NewDimensionError("LoadDiabetes", n, len(trows), 0)
	}
	p := len(rows[0])
	data := mat.NewDense(n, p, nil)
	target := mat.NewDense(n, 1, nil)
	for i := range rows {
		if len(rows[i]) != p {
			return nil, errors.NewDimensionError("LoadDiabetes", p, len(rows[i]), 1)
		}
		data.SetRow(i, rows[i])
		target.Set(i, 0, trows[i][0])
	}
	scaleColumns(data)
	logLoaded("diabetes", n, p)
	return &Dataset{Data: data, Target: target, FeatureNames: diabetesFeatures, Descr: diabetesDescr}, nil
}

// scaleColumns は各列を (x-μ)/(σ√n) に変換する（σ は母標準偏差）
func scaleColumns(X *mat.Dense) {
	n, p := X.Dims()
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		mu, v := stat.PopMeanVariance(col, nil)
		d := math.Sqrt(v) * math.Sqrt(float64(n))
		if d == 0 {
			d = 1
		}
		for i := range col {
			X.Set(i, j, (col[i]-mu)/d)
		}
	}
}

// loadHeaderCSV は "n_samples,n_features,target_name..." ヘッダ付き CSV を読む
func (l *Loader) loadHeaderCSV(ctx context.Context, name string) (*Dataset, error) {
	raw, err := l.file(ctx, name)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read header", name)
	}
	if len(header) < 2 {
		return nil, errors.NewValueError(name, "header must start with n_samples,n_features")
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(header[0]))
	p, err2 := strconv.Atoi(strings.TrimSpace(header[1]))
	if err1 != nil || err2 != nil || n <= 0 || p <= 0 {
		return nil, errors.NewValueError(name, "malformed header")
	}
	targetNames := make([]string, 0, len(header)-2)
	for _, t := range header[2:] {
		targetNames = append(targetNames, strings.TrimSpace(t))
	}

	data := mat.NewDense(n, p, nil)
	target := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		rec, err := r.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: row %d", name, i)
		}
		if len(rec) != p+1 {
			return nil, errors.NewDimensionError(name, p+1, len(rec), 1)
		}
		for j, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d col %d", name, i, j)
			}
			if j < p {
				data.Set(i, j, v)
			} else {
				target.Set(i, 0, v)
			}
		}
	}
	logLoaded(strings.TrimSuffix(name, ".csv"), n, p)
	return &Dataset{Data: data, Target: target, TargetNames: targetNames}, nil
}

// readRows は数値だけのテキストファイルを行ごとに読む（gzip 対応）
// sep が ' ' のときは任意の空白で区切る
func readRows(name string, raw []byte, gz bool, sep rune) ([][]float64, error) {
	var src io.Reader = bytes.NewReader(raw)
	if gz {
		zr, err := gzip.NewReader(src)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: gunzip", name)
		}
		defer zr.Close()
		src = zr
	}
	var out [][]float64
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var fields []string
		if sep == ' ' {
			fields = strings.Fields(text)
		} else {
			fields = strings.Split(text, string(sep))
		}
		row := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: line %d", name, line)
			}
			row[j] = v
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: scan", name)
	}
	return out, nil
}

func logLoaded(name string, n, p int) {
	log.GetLoggerWithName("datasets").Debug("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.SourceKey, name,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)
}
