/*
Package rsakit implements RSA encryption and signatures over keys it fully controls, including multi-prime keys

# Overview

A [Key] holds the modulus, both exponents and, for private keys, the primes together with the CRT exponents and
coefficients. Keys come from [GenerateKey], from crypto/rsa through [FromStdlib], or from one of the serialized
formats understood by the keyformat package (PKCS#1, PKCS#8, OpenSSH, PuTTY, XML, libgcrypt S-expressions).

Most callers wrap a key in an [Engine], which picks the padding scheme and hash once:

	engine, err := rsakit.NewEngine(key, &rsakit.Options{Hash: rsakit.SHA256, MGFHash: rsakit.SHA256})
	ciphertext, err := engine.Encrypt([]byte("test-vector"))
	signature, err := engine.Sign([]byte("test-vector"))

Encryption uses OAEP unless told otherwise and signatures use PSS. PKCS#1 v1.5 is available for both, and
EncryptionNone gives textbook RSA for interop with systems that do their own padding. Plaintexts longer than one
block are split up and each piece is encrypted separately; ciphertexts are split back into k-byte blocks.

The padding functions are also exported on their own: [EncryptOAEP], [DecryptOAEP], [EncryptPKCS1v15],
[DecryptPKCS1v15], [SignPKCS1v15], [VerifyPKCS1v15], [SignPSS] and [VerifyPSS].

# Private key operations

Decryption and signing work prime by prime using the Chinese Remainder Theorem and recombine the partial results
with Garner's formula, so a key with three or more primes is faster, not slower. Each operation draws a fresh
random blinding value, which can be switched off with Options.DisableBlinding. If any CRT value is missing the
operation falls back to a single exponentiation by D.

Padding checks on decryption never say which check failed: callers get [ErrDecryption] and nothing more.

# Key generation

[GenerateKey] searches for primes until the key is complete or its time runs out. When it runs out, the error is
a [*TimeoutError] carrying a [PartialKey] with the primes found so far. That token can be stored with
[PartialKey.EncodePEM] and handed back later to pick up where the search stopped:

	key, err := rsakit.GenerateKey(ctx, rsakit.GenerateOptions{Bits: 4096, Timeout: time.Second})
	var timeout *rsakit.TimeoutError
	if errors.As(err, &timeout) {
		key, err = rsakit.GenerateKey(ctx, rsakit.GenerateOptions{Bits: 4096, Partial: timeout.Partial})
	}

# Sources

	[1] https://www.rfc-editor.org/rfc/rfc8017 (PKCS #1 v2.2)
	[2] https://www.rfc-editor.org/rfc/rfc1319 (MD2)
*/
package rsakit
