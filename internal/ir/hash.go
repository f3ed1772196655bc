package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed node signatures.
// Version suffix enables future algorithm migration.
const (
	DomainFilter    = "reteflow/filter/v1"
	DomainJoin      = "reteflow/join/v1"
	DomainPredicate = "reteflow/predicate/v1"
	DomainQuery     = "reteflow/query/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FilterSignature computes the canonical name of a single-pattern filter.
// Constants contribute their value; variables contribute only their binding
// index, never their spelling.
func FilterSignature(fp FactPattern) (string, error) {
	canonical, err := MarshalCanonical(IRObject{"pattern": fp.Signature()})
	if err != nil {
		return "", fmt.Errorf("FilterSignature: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFilter, canonical), nil
}

// JoinSignature computes the canonical name of a join from the canonical
// names of its inputs and the combined left++right schema as binding indices.
func JoinSignature(left, right string, schema []int) (string, error) {
	obj := IRObject{
		"left":   IRString(left),
		"right":  IRString(right),
		"schema": IntArray(schema),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("JoinSignature: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainJoin, canonical), nil
}

// PredicateSignature computes the canonical name of a filter-expression node
// chained onto predecessor. expr is the expression text with variables
// already rewritten to binding indices.
func PredicateSignature(predecessor, expr string) (string, error) {
	obj := IRObject{
		"expr":        IRString(expr),
		"predecessor": IRString(predecessor),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PredicateSignature: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPredicate, canonical), nil
}

// QueryHash hashes query text. Used by the catalog to group topologies that
// were compiled from the same query.
func QueryHash(text string) string {
	canonical, err := MarshalCanonical(IRString(text))
	if err != nil {
		// A string always marshals.
		panic(err)
	}
	return hashWithDomain(DomainQuery, canonical)
}
