package legstatus

import (
	"sort"
	"sync"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
)

//legCollection is the service's in memory view of the fleet, seeded from the trip store
//at startup and kept current by the NATS leg update listener. Safe for concurrent use
type legCollection struct {
	mu             sync.RWMutex
	activeByVessel map[string]*legs.Leg
	//recentCompleted holds the newest completed legs first, capped at maxCompleted
	recentCompleted []*legs.Leg
	maxCompleted    int
}

//makeLegCollection builds legCollection retaining up to maxCompleted completed legs
func makeLegCollection(maxCompleted int) *legCollection {
	return &legCollection{
		activeByVessel: make(map[string]*legs.Leg),
		maxCompleted:   maxCompleted,
	}
}

//seed installs the current active legs, replacing any previous view
func (c *legCollection) seed(activeLegs []*legs.Leg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeByVessel = make(map[string]*legs.Leg, len(activeLegs))
	for _, leg := range activeLegs {
		c.activeByVessel[leg.VehicleId] = leg
	}
}

//applyResults folds one round's published results into the view
func (c *legCollection) applyResults(results *legs.LegMonitorResults) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, leg := range results.ActiveLegs {
		c.activeByVessel[leg.VehicleId] = leg
	}
	for _, leg := range results.CompletedLegs {
		c.recentCompleted = append([]*legs.Leg{leg}, c.recentCompleted...)
	}
	if len(c.recentCompleted) > c.maxCompleted {
		c.recentCompleted = c.recentCompleted[:c.maxCompleted]
	}
}

//activeLegs returns every vessel's active leg ordered by vessel id
func (c *legCollection) activeLegs() []*legs.Leg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results := make([]*legs.Leg, 0, len(c.activeByVessel))
	for _, leg := range c.activeByVessel {
		results = append(results, leg)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].VehicleId < results[j].VehicleId
	})
	return results
}

//activeLeg returns the active leg for vehicleId, or nil
func (c *legCollection) activeLeg(vehicleId string) *legs.Leg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeByVessel[vehicleId]
}

//recentCompletions returns the retained completed legs, newest first
func (c *legCollection) recentCompletions() []*legs.Leg {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results := make([]*legs.Leg, len(c.recentCompleted))
	copy(results, c.recentCompleted)
	return results
}
