// Package quantumagility provides a post-quantum crypto-agility ledger: an
// append-only, hash-chained log whose entries stay readable and verifiable
// while its KEM and signature algorithms migrate from classical to hybrid to
// post-quantum-only.
//
// Each entry records the mode and key epoch it was written with, so a
// migration only changes how later entries are protected. Nothing already
// committed is re-encrypted or re-signed.
//
// # Quick Start
//
//	import (
//		"github.com/pzverkov/quantum-agility/pkg/hybridkem"
//		"github.com/pzverkov/quantum-agility/pkg/hybridsig"
//		"github.com/pzverkov/quantum-agility/pkg/ledger"
//		"github.com/pzverkov/quantum-agility/pkg/registry"
//	)
//
//	l, _ := ledger.New(ctx, ledger.Options{
//		KEMMode:      hybridkem.HybridMode(registry.Lattice),
//		SigMode:      hybridsig.HybridMode(registry.LatticeDSA),
//		Confidential: true,
//	})
//	l.Commit(ctx, []byte("alpha"))
//	l.MigrateKEM(ctx, hybridkem.QuantumSafeMode(registry.Lattice))
//	l.Commit(ctx, []byte("gamma"))
//	ok := l.VerifyChain(ctx) // true across the migration
//
// For a persistent ledger with an encrypted key file, see pkg/workspace and
// the pqledger command.
//
// # Package Structure
//
//   - pkg/registry: Catalog of KEM and signature families with fixed sizes
//   - pkg/hybridkem: Legacy, hybrid and quantum-safe key encapsulation
//   - pkg/hybridsig: Legacy, hybrid and pure post-quantum signatures
//   - pkg/envelope: HKDF key derivation and AEAD payload encryption
//   - pkg/ledger: The hash-chained ledger, key ring and migrations
//   - pkg/store: Memory, Badger and SQLite backends, key files, archives
//   - pkg/workspace: Data directory layout tying config, store and keys
//   - pkg/binding: Integer-mode surface for mobile bindings
//   - pkg/config: YAML and environment configuration
//   - pkg/metrics: Logging, tracing, metrics and health checks
//   - pkg/crypto: Primitives, FIPS mode and power-on self-tests
//   - pkg/wire: Versioned record encoding
//   - cmd/pqledger: Operator CLI and HTTP server
//
// # Security Properties
//
//   - Hybrid KEM: secret is X25519 || PQ, bound to both ciphertexts by HKDF
//   - Hybrid signatures: Ed25519 and the PQ signature must both verify
//   - Chain: tip_n = SHA3-256(tip_{n-1} || plaintext_n), signed per entry
//   - Entry metadata (index, modes, epochs) is bound into the AEAD data
//   - Old KEM secrets are kept until explicitly retired
//
// # Testing
//
//	go test ./...                                  # All tests
//	go test -run TestKAT ./pkg/crypto              # Known Answer Tests
//	go test -fuzz=FuzzParseEntry ./pkg/ledger      # Fuzz tests
//	go test -bench=. ./pkg/crypto ./pkg/ledger     # Benchmarks
//	go test -tags oqs ./...                        # With liboqs (HQC, Falcon)
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - NIST FIPS 204: Module-Lattice-Based Digital Signature Standard
//   - NIST FIPS 205: Stateless Hash-Based Digital Signature Standard
//   - RFC 5869: HMAC-based Extract-and-Expand Key Derivation Function
//   - RFC 7748: Elliptic Curves for Security
package quantumagility
