package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title     string  `yaml:"Title"`
	CFL       float64 `yaml:"CFL"`
	FinalTime float64 `yaml:"FinalTime"`
	Gamma     float64 `yaml:"Gamma"`
	Mu        float64 `yaml:"Mu"`
	Kappa     float64 `yaml:"Kappa"`

	// Limiter controls
	Limiter              string  `yaml:"Limiter"`
	RelaxBounds          bool    `yaml:"RelaxBounds"`
	RelaxationOrder      int     `yaml:"RelaxationOrder"`
	VariationCalibration float64 `yaml:"VariationCalibration"`

	// Initial state
	InitType       string    `yaml:"InitType"`
	Direction      []float64 `yaml:"Direction"`
	Position       []float64 `yaml:"Position"`
	Perturbation   float64   `yaml:"Perturbation"`
	RandomSeed     int64     `yaml:"RandomSeed"`
	MachNumber     float64   `yaml:"MachNumber"`
	PrimitiveLeft  []float64 `yaml:"PrimitiveLeft"`  // rho, u, p
	PrimitiveRight []float64 `yaml:"PrimitiveRight"` // rho, u, p

	// Implicit solver controls
	MaxIterations          int     `yaml:"MaxIterations"`
	Tolerance              float64 `yaml:"Tolerance"`
	VelocityPreconditioner string  `yaml:"VelocityPreconditioner"`
	EnergyPreconditioner   string  `yaml:"EnergyPreconditioner"`
	ChebyshevDegree        int     `yaml:"ChebyshevDegree"`

	// Grid
	Dimension int               `yaml:"Dimension"`
	NX        int               `yaml:"NX"`
	NY        int               `yaml:"NY"`
	LengthX   float64           `yaml:"LengthX"`
	LengthY   float64           `yaml:"LengthY"`
	BCs       map[string]string `yaml:"BCs"` // Key is side name: left, right, bottom, top
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("%8.5f\t\t= FinalTime\n", ip.FinalTime)
	fmt.Printf("%8.5f\t\t= Gamma\n", ip.Gamma)
	fmt.Printf("%8.5g\t\t= Mu\n", ip.Mu)
	fmt.Printf("%8.5g\t\t= Kappa\n", ip.Kappa)
	fmt.Printf("[%s]\t= Limiter\n", ip.Limiter)
	fmt.Printf("[%s]\t= InitType\n", ip.InitType)
	fmt.Printf("[%d]\t\t\t\t= Dimension\n", ip.Dimension)
	keys := make([]string, len(ip.BCs))
	i := 0
	for k := range ip.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
