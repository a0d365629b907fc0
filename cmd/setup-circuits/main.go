// setup-circuits pre-builds and writes to disk the Groth16
// proving/verifying keys and Solidity verifiers for the fixed-shape
// circuits listed in fixedShapes. The files are written for offline
// use: proofbackend does not read them, so prove-worker and
// prover-server still compile and set up every shape in memory on
// first use. Adapted from the teacher's setup_circuit.go (compile ->
// groth16.Setup -> write files -> export Solidity verifier),
// generalized from one hardcoded circuit to a list of shapes.
package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"

	"github.com/near-zk/finality-prover/internal/circuits"
	"github.com/near-zk/finality-prover/internal/config"
)

// fixedShape names one circuit this binary compiles and sets up; the
// per-message-length Ed25519Circuit shapes are not pre-built here
// since they vary with the live chain's approval message layout and
// are instead memoized on demand by circuitcache inside prove-worker.
type fixedShape struct {
	name    string
	circuit frontend.Circuit
}

func fixedShapes() []fixedShape {
	return []fixedShape{
		{"BlockDataCircuit", circuits.NewBlockDataCircuit()},
		{"StakeThresholdCircuit100", circuits.NewStakeThresholdCircuit(100)},
		{"Sha256DigestCircuit4096", circuits.NewSha256DigestCircuit(4096)},
	}
}

func main() {
	logger.Disable()
	cfg := config.New(os.Args[1:]...)

	buildDir := filepath.Join(cfg.RootDir, ".build")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		fmt.Println("error creating build dir:", err)
		os.Exit(1)
	}

	for _, shape := range fixedShapes() {
		if err := setupOne(buildDir, shape); err != nil {
			fmt.Printf("error setting up %s: %v\n", shape.name, err)
			os.Exit(1)
		}
	}
}

func setupOne(buildDir string, shape fixedShape) error {
	fmt.Printf("compiling %s...\n", shape.name)
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, shape.circuit)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	fmt.Printf("%s: %d constraints, %d public inputs\n", shape.name, ccs.GetNbConstraints(), ccs.GetNbPublicVariables())

	ccsFile, err := os.Create(filepath.Join(buildDir, shape.name+".ccs"))
	if err != nil {
		return err
	}
	defer ccsFile.Close()
	if _, err := ccs.WriteTo(ccsFile); err != nil {
		return fmt.Errorf("write ccs: %w", err)
	}

	fmt.Printf("generating proving/verifying keys for %s...\n", shape.name)
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	pkFile, err := os.Create(filepath.Join(buildDir, shape.name+".pk"))
	if err != nil {
		return err
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("write pk: %w", err)
	}

	vkFile, err := os.Create(filepath.Join(buildDir, shape.name+".vk"))
	if err != nil {
		return err
	}
	defer vkFile.Close()
	if _, err := vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("write vk: %w", err)
	}

	var buf bytes.Buffer
	if err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New())); err != nil {
		return fmt.Errorf("export solidity verifier: %w", err)
	}
	solPath := filepath.Join(buildDir, shape.name+"Verifier.sol")
	if err := os.WriteFile(solPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write solidity verifier: %w", err)
	}

	fmt.Printf("setup complete for %s\n", shape.name)
	return nil
}
