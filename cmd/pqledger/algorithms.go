package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pzverkov/quantum-agility/pkg/crypto"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

func algorithmsCommand(args []string) error {
	fs, _ := newFlagSet("algorithms", "List the KEM and signature families and whether this build supports them.")
	_ = fs.Parse(args)

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	classical := registry.ClassicalKEM()
	fmt.Fprintln(tw, "KEM\tPARAMETERS\tSTANDARD\tCAT\tPK\tCT\tSTATUS")
	fmt.Fprintf(tw, "%s\t%s\t%s\t-\t%d\t%d\t%s\n", "classical", classical.Name, classical.Standard,
		classical.PublicKeySize, classical.CiphertextSize, "supported")
	for _, d := range registry.KEMs() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", d.Family, d.Name, d.Standard,
			d.SecurityCategory, d.PublicKeySize, d.CiphertextSize, support(d.Supported, d.Research))
	}
	fmt.Fprintln(tw)

	signer := registry.ClassicalSignature()
	fmt.Fprintln(tw, "SIGNATURE\tPARAMETERS\tSTANDARD\tCAT\tPK\tSIG\tSTATUS")
	fmt.Fprintf(tw, "%s\t%s\t%s\t-\t%d\t%d\t%s\n", "classical", signer.Name, signer.Standard,
		signer.PublicKeySize, signer.SignatureSize, "supported")
	for _, d := range registry.Signatures() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", d.Family, d.Name, d.Standard,
			d.SecurityCategory, d.PublicKeySize, d.SignatureSize, support(d.Supported, d.Research))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "\nliboqs: %t  FIPS mode: %t\n", crypto.OQSEnabled(), crypto.FIPSMode())
	return nil
}

func support(supported, research bool) string {
	switch {
	case supported:
		return "supported"
	case research:
		return "research"
	}
	return "unavailable"
}

func selftestCommand(args []string) error {
	fs, _ := newFlagSet("selftest", "Run the power-on known-answer tests and report each result.")
	_ = fs.Parse(args)

	result := crypto.RunPOST()
	checks := []struct {
		name   string
		passed bool
	}{
		{"HKDF-SHA3-256", result.KDFPassed},
		{"SHA3-256 chain digest", result.HashPassed},
		{"AEAD", result.AEADPassed},
		{"ML-KEM-1024", result.MLKEMPassed},
		{"ML-DSA-87", result.MLDSAPassed},
	}
	for _, c := range checks {
		mark := "✓"
		if !c.passed {
			mark = "✗"
		}
		fmt.Fprintf(stdout, "%s %s\n", mark, c.name)
	}
	if err := selfTest(); err != nil {
		return fmt.Errorf("self test failed: %w", err)
	}
	fmt.Fprintln(stdout, "\nAll self tests passed")
	return nil
}
