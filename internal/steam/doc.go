// Package steam resolves Steam application ids to display titles.
//
// Resolver.Resolve consults a small built-in table of non-game ids first,
// then the Steam store appdetails endpoint, and falls back to UnknownTitle.
// It never returns an error: every failure degrades to the sentinel so a
// screenshot can always be named. Results are not cached; each delivery
// attempt performs its own lookup.
package steam
