// Package datasets loads the small toy datasets shipped with scikit-learn
// (iris, breast cancer, digits, diabetes) and fetches remote CSV files.
//
// Dataset files are read from a data home directory. Missing files are
// downloaded once from a base URL and cached there.
package datasets

import (
	"context"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// DefaultBaseURL は scikit-learn リポジトリ内のデータファイル置き場
const DefaultBaseURL = "https://raw.githubusercontent.com/scikit-learn/scikit-learn/1.5.2/sklearn/datasets/data/"

// Dataset is a loaded dataset: Data is n×p, Target is n×1.
type Dataset struct {
	Data         *mat.Dense
	Target       *mat.Dense
	FeatureNames []string
	TargetNames  []string
	Descr        string
}

// Loader resolves dataset files in a data home directory.
type Loader struct {
	dataHome string
	baseURL  string
	fetcher  *Fetcher
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDataHome sets the cache directory.
func WithDataHome(dir string) LoaderOption {
	return func(l *Loader) { l.dataHome = dir }
}

// WithBaseURL sets where missing files are downloaded from.
func WithBaseURL(url string) LoaderOption {
	return func(l *Loader) { l.baseURL = url }
}

// WithFetcher sets the downloader.
func WithFetcher(f *Fetcher) LoaderOption {
	return func(l *Loader) { l.fetcher = f }
}

// DefaultDataHome returns $SCIKIT_LEARN_DATA or ~/scikit_learn_data.
func DefaultDataHome() string {
	if d := os.Getenv("SCIKIT_LEARN_DATA"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "scikit_learn_data"
	}
	return filepath.Join(home, "scikit_learn_data")
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		dataHome: DefaultDataHome(),
		baseURL:  DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fetcher == nil {
		l.fetcher = NewFetcher()
	}
	return l
}

// DataHome returns the cache directory.
func (l *Loader) DataHome() string { return l.dataHome }

// Fetcher returns the downloader used for missing files.
func (l *Loader) Fetcher() *Fetcher { return l.fetcher }

// file はキャッシュ済みファイルを返す。無ければダウンロードして保存する
func (l *Loader) file(ctx context.Context, name string) ([]byte, error) {
	path := filepath.Join(l.dataHome, name)
	if b, err := os.ReadFile(path); err == nil {
		return b, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	url := l.baseURL + name
	log.GetLoggerWithName("datasets").Info("Downloading dataset file",
		log.SourceKey, url,
		"path", path,
	)
	b, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.dataHome, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data home %s", l.dataHome)
	}
	tmp, err := os.CreateTemp(l.dataHome, name+".*.part")
	if err != nil {
		return nil, errors.Wrap(err, "create cache file")
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "write cache file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "close cache file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, errors.Wrap(err, "store cache file")
	}
	return b, nil
}

var defaultLoader = NewLoader()

// SetDefaultLoader replaces the loader used by the package-level functions.
func SetDefaultLoader(l *Loader) { defaultLoader = l }

// LoadIris loads the iris dataset with the default loader.
func LoadIris(ctx context.Context) (*Dataset, error) { return defaultLoader.LoadIris(ctx) }

// LoadBreastCancer loads the Wisconsin breast cancer dataset with the default loader.
func LoadBreastCancer(ctx context.Context) (*Dataset, error) {
	return defaultLoader.LoadBreastCancer(ctx)
}

// LoadDigits loads the 8×8 digits dataset with the default loader.
func LoadDigits(ctx context.Context) (*Dataset, error) { return defaultLoader.LoadDigits(ctx) }

// LoadDiabetes loads the scaled diabetes dataset with the default loader.
func LoadDiabetes(ctx context.Context) (*Dataset, error) { return defaultLoader.LoadDiabetes(ctx) }
