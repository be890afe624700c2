// README: Running-average rating recomputation.
package actor

// NextRating folds one new rating into a running average. It is applied inside
// the review transaction with the reviewee's current (average, count).
func NextRating(avg float64, count int, rating int) (float64, int) {
	if count < 0 {
		count = 0
	}
	next := (avg*float64(count) + float64(rating)) / float64(count+1)
	return next, count + 1
}
