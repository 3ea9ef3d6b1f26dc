/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"math"
	"math/rand"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/cfdlabs/idpflow/InputParameters"
	"github.com/cfdlabs/idpflow/dissipation"
	"github.com/cfdlabs/idpflow/euler"
	"github.com/cfdlabs/idpflow/graph"
	"github.com/cfdlabs/idpflow/hyperbolic"
	"github.com/cfdlabs/idpflow/initcond"
	"github.com/cfdlabs/idpflow/limiter"
	"github.com/cfdlabs/idpflow/linsolve"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the invariant domain preserving solver on a Cartesian grid",
	Long: `
Runs the explicit graph viscosity update with convex limiting, followed by
the implicit dissipation step when viscosity or heat conductivity is set,

idpflow run -I input.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("run called")
		icFile, err := cmd.Flags().GetString("inputConditionsFile")
		if err != nil {
			panic(err)
		}
		doProfile, _ := cmd.Flags().GetBool("profile")
		parallel, _ := cmd.Flags().GetInt("parallel")
		ip := processInput(icFile)
		if doProfile {
			defer profile.Start().Stop()
		}
		Run(ip, parallel)
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- CFL\n\t- Gamma\n\t- Limiter")
	RunCmd.Flags().BoolP("profile", "p", false, "generate a runtime profile of the solver")
	RunCmd.Flags().IntP("parallel", "j", runtime.NumCPU(), "number of goroutines used for node loops")
}

func processInput(icFile string) (ip *InputParameters.InputParameters) {
	var (
		err error
	)
	if len(icFile) == 0 {
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Shock Tube"
CFL: 0.5
FinalTime: 0.25
Gamma: 1.4
Limiter: SpecificEntropy
InitType: contrast
Dimension: 1
NX: 400
LengthX: 1.
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(icFile); err != nil {
		panic(err)
	}
	ip = &InputParameters.InputParameters{
		CFL:             0.5,
		Gamma:           1.4,
		Limiter:         "SpecificEntropy",
		RelaxBounds:     true,
		RelaxationOrder: 3,
		InitType:        "contrast",
		Dimension:       1,
		NX:              400,
		LengthX:         1.,
		MaxIterations:   1000,
		Tolerance:       1.e-12,
	}
	if err = ip.Parse(data); err != nil {
		panic(err)
	}
	return
}

func boundaryKind(name string) graph.BoundaryKind {
	switch strings.ToLower(name) {
	case "", "slip":
		return graph.Slip
	case "noslip", "no_slip":
		return graph.NoSlip
	case "periodic":
		return graph.Periodic
	default:
		panic(fmt.Errorf("unknown boundary condition %q", name))
	}
}

func buildGraph(ip *InputParameters.InputParameters) (g *graph.Graph) {
	switch ip.Dimension {
	case 1:
		g = graph.NewCartesian1D(ip.NX, ip.LengthX,
			boundaryKind(ip.BCs["left"]), boundaryKind(ip.BCs["right"]))
	case 2:
		g = graph.NewCartesian2D(ip.NX, ip.NY, ip.LengthX, ip.LengthY,
			[4]graph.BoundaryKind{
				boundaryKind(ip.BCs["left"]),
				boundaryKind(ip.BCs["right"]),
				boundaryKind(ip.BCs["bottom"]),
				boundaryKind(ip.BCs["top"]),
			})
	default:
		panic(fmt.Errorf("unsupported dimension %d", ip.Dimension))
	}
	return
}

func initialConfig(ip *InputParameters.InputParameters, dim int) (cfg initcond.Config) {
	cfg = initcond.DefaultConfig(dim)
	cfg.Configuration = ip.InitType
	cfg.Perturbation = ip.Perturbation
	if len(ip.Direction) != 0 {
		cfg.Direction = ip.Direction
	}
	if len(ip.Position) != 0 {
		cfg.Position = ip.Position
	}
	if ip.MachNumber != 0. {
		cfg.MachNumber = ip.MachNumber
	}
	if len(ip.PrimitiveLeft) == 3 {
		cfg.RhoLeft, cfg.ULeft, cfg.PLeft =
			ip.PrimitiveLeft[0], ip.PrimitiveLeft[1], ip.PrimitiveLeft[2]
	}
	if len(ip.PrimitiveRight) == 3 {
		cfg.RhoRight, cfg.URight, cfg.PRight =
			ip.PrimitiveRight[0], ip.PrimitiveRight[1], ip.PrimitiveRight[2]
	}
	return
}

func limiterParams(ip *InputParameters.InputParameters) (lp limiter.Parameters) {
	var (
		ok bool
	)
	lp = limiter.DefaultParameters()
	if len(ip.Limiter) != 0 {
		if lp.Variant, ok = limiter.ParseVariant(ip.Limiter); !ok {
			panic(fmt.Errorf("unknown limiter variant %q", ip.Limiter))
		}
	}
	lp.RelaxBounds = ip.RelaxBounds
	if ip.RelaxationOrder != 0 {
		lp.RelaxationOrder = ip.RelaxationOrder
	}
	if ip.VariationCalibration != 0. {
		lp.VariationCalibration = ip.VariationCalibration
	}
	return
}

func dissipationParams(ip *InputParameters.InputParameters) (dp dissipation.Parameters) {
	var (
		ok bool
	)
	dp = dissipation.DefaultParameters()
	dp.Mu = ip.Mu
	dp.Kappa = ip.Kappa
	if ip.Tolerance != 0. {
		dp.Tolerance = ip.Tolerance
	}
	if ip.MaxIterations != 0 {
		dp.MaxIterations = ip.MaxIterations
	}
	if len(ip.VelocityPreconditioner) != 0 {
		if dp.VelocityPreconditioner, ok = linsolve.ParsePreconditioner(ip.VelocityPreconditioner); !ok {
			panic(fmt.Errorf("unknown preconditioner %q", ip.VelocityPreconditioner))
		}
	}
	if len(ip.EnergyPreconditioner) != 0 {
		if dp.EnergyPreconditioner, ok = linsolve.ParsePreconditioner(ip.EnergyPreconditioner); !ok {
			panic(fmt.Errorf("unknown preconditioner %q", ip.EnergyPreconditioner))
		}
	}
	if ip.ChebyshevDegree != 0 {
		dp.ChebyshevDegree = ip.ChebyshevDegree
	}
	return
}

func Run(ip *InputParameters.InputParameters, parallel int) {
	var (
		err error
	)
	ip.Print()
	g := buildGraph(ip)
	gas := euler.NewGas(ip.Gamma, g.Dim)
	fmt.Printf("Nodes: %d, Edges: %d\n", g.N, g.NumEdges())

	iv, err := initcond.New(gas, initialConfig(ip, g.Dim),
		rand.New(rand.NewSource(ip.RandomSeed)))
	if err != nil {
		panic(err)
	}
	U := iv.Interpolate(g, 0.)

	hyp := hyperbolic.NewGraphEuler(gas, g, limiterParams(ip), parallel, ip.CFL)

	var dis *dissipation.Orchestrator
	dp := dissipationParams(ip)
	withDissipation := dp.Mu != 0. || dp.Kappa != 0.
	if withDissipation {
		dis = dissipation.NewOrchestrator(gas, g, dp)
		dis.Prepare()
	}

	var (
		t     float64
		cycle int
		tau   float64
	)
	for t < ip.FinalTime {
		if tau, err = hyp.Step(U, t, ip.FinalTime-t); err != nil {
			panic(err)
		}
		if withDissipation {
			dis.SetMaxTimeStep(tau)
			if _, err = dis.Step(U, t, 0., cycle); err != nil {
				panic(err)
			}
		}
		t += tau
		cycle++
		if cycle%100 == 0 || t >= ip.FinalTime {
			var rhoMin, rhoMax = math.MaxFloat64, 0.
			for i := 0; i < g.N; i++ {
				rhoMin = math.Min(rhoMin, U.Q[0][i])
				rhoMax = math.Max(rhoMax, U.Q[0][i])
			}
			fmt.Printf("cycle: %-8d t = %8.5f dt = %8.3e rho in [%8.5f, %8.5f]\n",
				cycle, t, tau, rhoMin, rhoMax)
		}
	}
	if withDissipation {
		fmt.Printf("avg CG iterations: velocity %5.1f, energy %5.1f\n",
			dis.IterationsVelocity(), dis.IterationsEnergy())
	}
	fmt.Printf("simulation complete after %d cycles\n", cycle)
}
