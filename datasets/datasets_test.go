package datasets

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func fastFetcher(maxTries uint) *Fetcher {
	return NewFetcher(WithMaxTries(maxTries), WithInitialInterval(time.Millisecond), WithTimeout(5*time.Second))
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	defer srv.Close()

	body, err := fastFetcher(5).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := fastFetcher(5).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fastFetcher(3).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fastFetcher(5).Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

const irisSample = "3,4,setosa,versicolor,virginica\n" +
	"5.1,3.5,1.4,0.2,0\n" +
	"7.0,3.2,4.7,1.4,1\n" +
	"6.3,3.3,6.0,2.5,2\n"

func TestLoader_DownloadsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/data/iris.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, irisSample)
	}))
	defer srv.Close()

	home := t.TempDir()
	l := NewLoader(WithDataHome(home), WithBaseURL(srv.URL+"/data/"), WithFetcher(fastFetcher(2)))

	ds, err := l.LoadIris(context.Background())
	require.NoError(t, err)
	r, c := ds.Data.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, ds.TargetNames)
	assert.Equal(t, irisFeatures, ds.FeatureNames)
	assert.Equal(t, 2.0, ds.Target.At(2, 0))
	assert.Equal(t, 4.7, ds.Data.At(1, 2))
	assert.Contains(t, ds.Descr, "Iris")

	_, err = os.Stat(filepath.Join(home, "iris.csv"))
	require.NoError(t, err)

	_, err = l.LoadIris(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second load must come from the cache")
}

func TestLoader_LocalFiles(t *testing.T) {
	home := t.TempDir()
	l := NewLoader(WithDataHome(home), WithBaseURL("http://127.0.0.1:0/unused/"), WithFetcher(fastFetcher(1)))

	t.Run("digits", func(t *testing.T) {
		row := make([]string, 65)
		for j := range row {
			row[j] = fmt.Sprintf("%d", j%17)
		}
		row[64] = "7"
		content := strings.Join(row, ",") + "\n" + strings.Join(row, ",") + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(home, "digits.csv.gz"), gz(t, content), 0o644))

		ds, err := l.LoadDigits(context.Background())
		require.NoError(t, err)
		r, c := ds.Data.Dims()
		assert.Equal(t, 2, r)
		assert.Equal(t, 64, c)
		assert.Equal(t, 7.0, ds.Target.At(0, 0))
		assert.Equal(t, "pixel_0_0", ds.FeatureNames[0])
		assert.Equal(t, "pixel_7_7", ds.FeatureNames[63])
		assert.Equal(t, "pixel_1_2", ds.FeatureNames[10])
		assert.Len(t, ds.TargetNames, 10)
	})

	t.Run("diabetes scaled", func(t *testing.T) {
		data := "59 2 32.1 101\n48 1 21.6 87\n72 2 30.5 93\n24 1 25.3 84\n"
		target := "151\n75\n141\n206\n"
		require.NoError(t, os.WriteFile(filepath.Join(home, "diabetes_data_raw.csv.gz"), gz(t, data), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(home, "diabetes_target.csv.gz"), gz(t, target), 0o644))

		ds, err := l.LoadDiabetes(context.Background())
		require.NoError(t, err)
		n, p := ds.Data.Dims()
		assert.Equal(t, 4, n)
		assert.Equal(t, 4, p)
		assert.Equal(t, 206.0, ds.Target.At(3, 0))
		for j := 0; j < p; j++ {
			col := mat.Col(nil, j, ds.Data)
			var sum, sq float64
			for _, v := range col {
				sum += v
				sq += v * v
			}
			assert.InDelta(t, 0, sum, 1e-12)
			assert.InDelta(t, 1, sq, 1e-12, "column %d sum of squares", j)
		}
	})

	t.Run("missing file without server", func(t *testing.T) {
		_, err := l.LoadBreastCancer(context.Background())
		assert.Error(t, err)
	})
}

func TestLoader_MalformedHeader(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "iris.csv"), []byte("x,y\n1,2\n"), 0o644))
	l := NewLoader(WithDataHome(home))
	_, err := l.LoadIris(context.Background())
	var ve *errors.ValueError
	assert.ErrorAs(t, err, &ve)
}

func TestBreastCancerFeatureNames(t *testing.T) {
	assert.Len(t, breastCancerFeatures, 30)
	assert.Equal(t, "mean radius", breastCancerFeatures[0])
	assert.Equal(t, "radius error", breastCancerFeatures[10])
	assert.Equal(t, "worst concave points", breastCancerFeatures[27])
	assert.Equal(t, "worst perimeter", breastCancerFeatures[22])
}

func TestScaleColumns_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 2, 2})
	scaleColumns(X)
	for i := 0; i < 3; i++ {
		assert.False(t, math.IsNaN(X.At(i, 0)))
		assert.Equal(t, 0.0, X.At(i, 0))
	}
}
