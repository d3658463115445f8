// Package catalog is the client and data model of the primary catalog API.
//
// The API serves groups (sets), products with free-form extended data, and price rows with a
// Normal or Foil variant. MapProduct turns a product into the normalized Record persisted by the
// card sync; GroupPrices folds price rows into one PriceRecord per product.
//
// # Endpoints
//
//	GET {base}/{categoryId}/groups
//	GET {base}/{categoryId}/{groupId}/products
//	GET {base}/{categoryId}/{groupId}/prices
package catalog
