package expr

import "math"

// Local aliases keep the node implementations free of package qualifiers
// in the evaluation hot paths.
var (
	pow  = math.Pow
	exp  = math.Exp
	log  = math.Log
	sqrt = math.Sqrt
	sin  = math.Sin
	cos  = math.Cos
)
