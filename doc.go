// Package supervised is a collection of supervised learning walkthroughs
// built on a small scikit-learn shaped library for Go.
//
// The library packages follow the familiar Fit / Predict / Transform
// contract on gonum matrices:
//
//   - preprocessing: StandardScaler, MinMaxScaler, PolynomialFeatures, LabelEncoder
//   - sklearn/linear_model: LinearRegression, LogisticRegression, SGDClassifier
//   - sklearn/svm: SVC, LinearSVC
//   - sklearn/naive_bayes: BernoulliNB, MultinomialNB
//   - sklearn/tree, sklearn/ensemble: DecisionTreeClassifier, RandomForestClassifier
//   - sklearn/model_selection: TrainTestSplit, KFold, CrossValScore, RandomizedSearchCV
//   - sklearn/feature_extraction, sklearn/feature_selection: CountVectorizer, FisherScore
//   - metrics: accuracy, precision / recall / F1, log loss, regression errors
//
// Supporting packages load the reference datasets (datasets), hold tabular
// data (dataframe) and render charts (plotting). Each walkthrough under
// examples/ is a standalone program:
//
//	go run ./examples/classification/linear/binary/logistic_regression --no-plots
//
// Flags, SUPERVISED_* environment variables and an optional supervised.yaml
// configure the data cache, plot directory, logging and HTTP retries.
package supervised
