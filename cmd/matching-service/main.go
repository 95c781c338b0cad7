// matching-service ranks active job postings for each user.
//
// It consumes resumes, preferences, postings and the interaction log from
// Postgres and exposes the last computed ranking over HTTP. Recomputation
// runs in the background:
//   - when a user's active resume or preferences change
//   - on the scheduler cadence, to absorb newly ingested jobs
//
// Publishes EVENT_MATCHES_UPDATED to Redis after every run.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
