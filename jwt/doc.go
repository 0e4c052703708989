// Package jwt issues and verifies the short-lived access tokens that carry a
// user id between requests without a store round trip.
package jwt
