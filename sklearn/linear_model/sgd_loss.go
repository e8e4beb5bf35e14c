package linear_model

import (
	"math"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// sgdLoss は予測値 p とラベル y ∈ {-1, +1} に対する損失と dL/dp
type sgdLoss interface {
	loss(p, y float64) float64
	dloss(p, y float64) float64
}

func lossFor(name string) (sgdLoss, error) {
	switch name {
	case "hinge":
		return hingeLoss{threshold: 1}, nil
	case "perceptron":
		return hingeLoss{threshold: 0}, nil
	case "log_loss":
		return logLoss{}, nil
	case "modified_huber":
		return modifiedHuberLoss{}, nil
	case "squared_hinge":
		return squaredHingeLoss{}, nil
	default:
		return nil, errors.NewValidationError("loss",
			"must be one of hinge, log_loss, modified_huber, squared_hinge, perceptron", name)
	}
}

// hingeLoss: threshold=1 で SVM のヒンジ損失、0 でパーセプトロン
type hingeLoss struct {
	threshold float64
}

func (h hingeLoss) loss(p, y float64) float64 {
	return math.Max(0, h.threshold-p*y)
}

func (h hingeLoss) dloss(p, y float64) float64 {
	if p*y <= h.threshold {
		return -y
	}
	return 0
}

type logLoss struct{}

func (logLoss) loss(p, y float64) float64 {
	return logistic1p(-p * y)
}

func (logLoss) dloss(p, y float64) float64 {
	z := p * y
	switch {
	case z > 18:
		return -y * math.Exp(-z)
	case z < -18:
		return -y
	default:
		return -y / (math.Exp(z) + 1)
	}
}

type modifiedHuberLoss struct{}

func (modifiedHuberLoss) loss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return (1 - z) * (1 - z)
	default:
		return -4 * z
	}
}

func (modifiedHuberLoss) dloss(p, y float64) float64 {
	z := p * y
	switch {
	case z >= 1:
		return 0
	case z >= -1:
		return -2 * (1 - z) * y
	default:
		return -4 * y
	}
}

type squaredHingeLoss struct{}

func (squaredHingeLoss) loss(p, y float64) float64 {
	z := 1 - p*y
	if z > 0 {
		return z * z
	}
	return 0
}

func (squaredHingeLoss) dloss(p, y float64) float64 {
	z := 1 - p*y
	if z > 0 {
		return -2 * y * z
	}
	return 0
}
