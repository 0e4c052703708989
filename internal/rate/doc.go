// Package rate implements Redis fixed-window counters for login and
// verification-email throttling.
//
// # Window semantics
//
// INCR, then EXPIRE only when the counter was just created, so a window
// starts at the first hit and is not extended by later ones. Keys:
//   - <prefix>:login:u:<email>  failed logins per account
//   - <prefix>:login:ip:<ip>    failed logins per client IP
//   - <prefix>:verify:<userID>  verification emails per account
package rate
