package sensor

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Reading is one simulated IoT sensor measurement. device_id and temperature
// are the fields the relay's validation stage requires; the rest is carried
// opaquely.
type Reading struct {
	DeviceID    string  `json:"device_id"`
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Status      string  `json:"status"`
}

// Marshal encodes the reading to JSON.
func (r Reading) Marshal() ([]byte, error) { return json.Marshal(r) }

var statuses = []string{"normal", "warning", "error"}

// Generator produces randomized readings from a fixed simulated fleet.
type Generator struct {
	rng   *rand.Rand
	fleet []string
	now   func() time.Time
}

// NewGenerator creates a generator simulating fleetSize devices with
// uuid-suffixed ids.
func NewGenerator(fleetSize int, seed int64) *Generator {
	if fleetSize <= 0 {
		fleetSize = 100
	}
	fleet := make([]string, fleetSize)
	for i := range fleet {
		fleet[i] = fmt.Sprintf("device_%s", uuid.NewString()[:8])
	}
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		fleet: fleet,
		now:   time.Now,
	}
}

// Next produces one reading.
func (g *Generator) Next() Reading {
	return Reading{
		DeviceID:    g.fleet[g.rng.Intn(len(g.fleet))],
		Timestamp:   g.now().Format(time.RFC3339),
		Temperature: round2(20.0 + g.rng.Float64()*10.0),
		Humidity:    round2(40.0 + g.rng.Float64()*40.0),
		Status:      statuses[g.rng.Intn(len(statuses))],
	}
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}
