// Package engine implements the sync orchestrator.
//
// One call to Engine.Run drives a full pass over a freshly scraped dataset:
//
//	Scraped     the scrape is deduplicated and the previous snapshot loaded
//	Classified  every (character, category) pair gets a policy verdict
//	Fetching    verdicts that need data are dispatched to the Fetcher
//	Merged      every pair is resolved by the merge package, jinxes are
//	            made symmetric and the dataset is validated
//	Persisted   records, the combined file and the index are written
//	Manifested  the manifest is built once from the final dataset
//
// Fetches run in batches of bounded size with a courtesy delay between
// batches (see Dispatcher). A failed fetch never aborts the run: it falls
// back to the previous value or an explicit empty value. Failures to read
// or write local storage abort the run with a *RunError naming the state
// that failed; aggregate files are always replaced atomically, so an
// aborted run leaves the previous combined file and manifest intact.
//
// The engine is single-writer. Concurrent runs against the same storage
// root are not supported.
package engine
