// Package workload generates registry operation mixes for benchmarking a
// running daemon.
package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

type Op string

const (
	OpRegister   Op = "register"
	OpUnregister Op = "unregister"
	OpInstall    Op = "install"
	OpUninstall  Op = "uninstall"
	OpGet        Op = "get"
	OpLookup     Op = "lookup"
	OpList       Op = "list"
)

// Ops lists every operation in a stable order.
var Ops = []Op{OpRegister, OpUnregister, OpInstall, OpUninstall, OpGet, OpLookup, OpList}

func (o Op) Read() bool {
	return o == OpGet || o == OpLookup || o == OpList
}

// Instruction is one operation against the application Name.
type Instruction struct {
	Op    Op
	Name  string
	Delay time.Duration // Optional delay after the instruction
}

// WorkloadGenerator generates workloads based on specified parameters.
type WorkloadGenerator struct {
	ReadPercentage   float64       // Share of get, lookup and list operations
	ZipfianS         float64       // Skew of application name popularity, > 1
	ZipfianV         uint64        // Number of distinct application names
	OperationCount   int           // Total number of operations to generate
	InstructionDelay time.Duration // Optional delay between instructions
	Seed             int64         // Same seed, same workload
	NamePrefix       string
}

// NewWorkloadGenerator creates a new WorkloadGenerator with default parameters.
func NewWorkloadGenerator() *WorkloadGenerator {
	return &WorkloadGenerator{
		ReadPercentage: 0.8,
		ZipfianS:       1.01,
		ZipfianV:       1000,
		OperationCount: 1000,
		Seed:           1,
		NamePrefix:     "app",
	}
}

func (wg *WorkloadGenerator) Validate() error {
	switch {
	case wg.ReadPercentage < 0 || wg.ReadPercentage > 1:
		return fmt.Errorf("read percentage %v outside [0, 1]", wg.ReadPercentage)
	case wg.ZipfianS <= 1:
		return fmt.Errorf("zipfian s %v must be greater than 1", wg.ZipfianS)
	case wg.ZipfianV < 1:
		return errors.New("zipfian v must be at least 1")
	case wg.OperationCount < 0:
		return fmt.Errorf("negative operation count %d", wg.OperationCount)
	}
	return nil
}

// Write operations are weighted so that registrations outpace removals and
// the table grows over a run.
var writeMix = []struct {
	op     Op
	weight float64
}{
	{OpRegister, 0.5},
	{OpInstall, 0.2},
	{OpUninstall, 0.2},
	{OpUnregister, 0.1},
}

var readMix = []struct {
	op     Op
	weight float64
}{
	{OpGet, 0.45},
	{OpLookup, 0.45},
	{OpList, 0.1},
}

// Generate creates a workload based on the generator's parameters.
func (wg *WorkloadGenerator) Generate() ([]Instruction, error) {
	if err := wg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(wg.Seed))
	zipf := rand.NewZipf(r, wg.ZipfianS, 1, wg.ZipfianV-1)

	instructions := make([]Instruction, 0, wg.OperationCount)
	for i := 0; i < wg.OperationCount; i++ {
		var op Op
		if r.Float64() < wg.ReadPercentage {
			op = pick(r, readMix)
		} else {
			op = pick(r, writeMix)
		}
		instructions = append(instructions, Instruction{
			Op:    op,
			Name:  fmt.Sprintf("%s-%d", wg.NamePrefix, zipf.Uint64()),
			Delay: wg.InstructionDelay,
		})
	}
	return instructions, nil
}

func pick(r *rand.Rand, mix []struct {
	op     Op
	weight float64
}) Op {
	x := r.Float64()
	for _, m := range mix {
		if x < m.weight {
			return m.op
		}
		x -= m.weight
	}
	return mix[len(mix)-1].op
}
