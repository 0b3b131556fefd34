package shared

import "fmt"

// PostingLockKey builds the advisory lock key that serialises postings
// for one division month.
func PostingLockKey(division string, year, month int) string {
	return fmt.Sprintf("posting:%s:%04d-%02d:lock", division, year, month)
}
