// Package signature verifies HMAC signatures on incoming CMS webhooks.
//
// A Scheme describes where the signature lives and how it was produced:
// the header, a format template for parsing the header value, the HMAC
// algorithm, the encoding of the digest and a template for the signed input.
// Templates use ${signature}, ${timestamp} and ${body} placeholders.
//
// Sanity webhooks send
//
//	sanity-webhook-signature: t=1718000000000,v1=<base64url digest>
//
// where the digest is HMAC-SHA256 over "${timestamp}.${body}". Plain
// providers send the hex or base64 digest of the body alone:
//
//	x-signature: 5d41402abc4b2a76b9719d911017c592
//
// Digests are decoded and compared with hmac.Equal, so comparison time does
// not depend on how many leading bytes match.
package signature
