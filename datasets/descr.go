package datasets

const irisDescr = `Iris plants dataset
--------------------

:Number of Instances: 150 (50 in each of three classes)
:Number of Attributes: 4 numeric, predictive attributes and the class
:Attribute Information:
    - sepal length in cm
    - sepal width in cm
    - petal length in cm
    - petal width in cm
    - class: Iris-Setosa, Iris-Versicolour, Iris-Virginica
:Missing Attribute Values: None
:Creator: R.A. Fisher
:Date: July, 1988

The famous Iris database, first used by Sir R.A. Fisher. One class is
linearly separable from the other 2; the latter are NOT linearly separable
from each other.`

const breastCancerDescr = `Breast cancer wisconsin (diagnostic) dataset
--------------------------------------------

:Number of Instances: 569
:Number of Attributes: 30 numeric, predictive attributes and the class
:Attribute Information:
    ten real-valued features are computed for each cell nucleus (radius,
    texture, perimeter, area, smoothness, compactness, concavity, concave
    points, symmetry, fractal dimension). The mean, standard error and
    "worst" (mean of the three largest values) of each feature were
    computed for each image, resulting in 30 features.
:Class Distribution: 212 - Malignant, 357 - Benign
:Missing Attribute Values: None
:Creator: Dr. William H. Wolberg, W. Nick Street, Olvi L. Mangasarian
:Date: November, 1995

Features are computed from a digitized image of a fine needle aspirate
(FNA) of a breast mass.`

const digitsDescr = `Optical recognition of handwritten digits dataset
--------------------------------------------------

:Number of Instances: 1797
:Number of Attributes: 64
:Attribute Information: 8x8 image of integer pixels in the range 0..16.
:Missing Attribute Values: None
:Creator: E. Alpaydin
:Date: July; 1998

32x32 bitmaps are divided into nonoverlapping blocks of 4x4 and the number
of on pixels are counted in each block, giving an 8x8 input matrix.`

const diabetesDescr = `Diabetes dataset
----------------

Ten baseline variables, age, sex, body mass index, average blood pressure,
and six blood serum measurements were obtained for each of n = 442 diabetes
patients, as well as the response of interest, a quantitative measure of
disease progression one year after baseline.

:Number of Instances: 442
:Number of Attributes: First 10 columns are numeric predictive values
:Target: Column 11 is a quantitative measure of disease progression one year after baseline

Each of these 10 feature variables have been mean centered and scaled by
the standard deviation times the square root of n_samples (i.e. the sum of
squares of each column totals 1).`
