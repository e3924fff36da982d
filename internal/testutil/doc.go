// Package testutil provides BCF fixtures for tests.
//
// This package is intended for use in tests only. It encodes small BCF
// containers in memory so readers can be exercised without binary files
// checked into the repository.
//
// # Building a container
//
//	b := testutil.NewBuilder("S1")
//	b.Contig("1", 249250621)
//	b.Info("DP", "1", "Integer", "Raw read depth")
//	b.Format("PL", "G", "Integer", "Phred-scaled genotype likelihoods")
//	b.Add(testutil.Variant{Pos: 100, Alleles: []string{"A", "T"}})
//	path := b.WriteTemp(t, testutil.BGZF)
//
// # Standard fixture
//
// Standard returns the 60-record single-sample container used across the
// reader tests: positions start at 10021, MQ0F=1.0 everywhere, and the last
// record carries SGB and a third allele.
package testutil
