// Package password hashes and verifies secrets with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The same hasher serves account passwords and the slow layer of opaque token
// secrets. It never stores or logs what it hashes.
package password
