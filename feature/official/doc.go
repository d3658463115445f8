// Package official reads the official card browser and translates its cards into the catalog
// vocabulary: element glyphs become English names and the browser's text markup becomes plain
// text.
//
// The browser only answers searches from a session, so Client loads the browser page once
// (collecting its cookies) before the first POST to get-cards. Cache keeps the fetched list and
// its matching.Index for a TTL and coalesces concurrent fetches.
package official
