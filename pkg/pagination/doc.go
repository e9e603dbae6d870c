// Package pagination provides sequential cursor-based fetching for SaaS list endpoints.
//
// Most SaaS APIs return a page of items together with a "next" field (a URL
// carrying a page_token, or a raw cursor value). Each request depends on the
// previous page's cursor, so pages are fetched strictly one after another.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher[Event](listPage, pagination.DefaultConfig())
//	agg, err := fetcher.Fetch(ctx, url.Values{"user": {userURI}}, pagination.Options{
//		Paginate:   true,
//		MaxResults: 1000,
//	})
//
// The fetcher:
//   - Calls the page function, appends its items in server order
//   - Extracts the next cursor (absent or malformed next field ends pagination)
//   - Stops on a repeated cursor, a short page (optional) or the result cap
//   - Truncates items and count to MaxResults
//   - Never retries: a failed page aborts the call with a TransportError
package pagination
