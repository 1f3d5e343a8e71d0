// Package pagination aggregates every item of a remote paginated MDDB
// collection into one ordered sequence, despite the server-enforced
// per-request page-size ceiling.
//
// The collection endpoint accepts limit (page size, server-clamped) and
// page (1-based index) parameters and answers with a filteredCount field
// plus the page's items under a collection-specific key. The fetcher:
//
//   - probes page 1 to read filteredCount and observe the page size the
//     server actually honors (the effective limit, which may be smaller
//     than requested when the server clamps silently)
//   - computes total pages as ceil(filteredCount / effective limit)
//   - fetches pages 2..N in strictly ascending order (FetchAll), with a
//     worker pool reassembled by page index (FetchAllParallel), or as a
//     page-ordered stream (FetchPages)
//   - fails the whole aggregation on any page error; no partial result is
//     silently returned by the aggregate-all contract
//
// Example usage:
//
//	fetcher := pagination.New(api, "projects",
//		func(p Project) string { return p.Accession },
//		pagination.DefaultConfig())
//	accessions, err := fetcher.FetchAll(ctx, client.NewQuery("projects"), 100)
//
// Known limitation: filteredCount is read once from the probe and never
// revalidated. If the backing collection mutates mid-fetch, items can be
// missed or duplicated (the classic paginate-while-mutating race). Later
// pages that come back short do not re-derive the page count.
package pagination
