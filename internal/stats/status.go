package stats

import "crm/internal/domain"

type statusBucket struct {
	name  string
	color string
}

// statusBuckets is the fixed order and palette of the status distribution.
var statusBuckets = []statusBucket{
	{"A arrêté de faire yango", "#EF4444"},
	{"A fait un accident", "#F59E0B"},
	{"Appel sans réponse", "#6366F1"},
	{"Compte se connecter", "#22C55E"},
	{"Est disponible", "#38BDF8"},
	{"En déplacement", "#8B5CF6"},
	{"Crédit autre partenaire", "#EC4899"},
	{"Injoignable", "#64748B"},
	{"Malade", "#94A3B8"},
	{"Problème connexion", "#FB923C"},
	{"Pas de véhicule", "#A855F7"},
	{"Véhicule au garage", "#14B8A6"},
}

const (
	bucketUnreachable = "Injoignable"
	bucketNoVehicle   = "Pas de véhicule"
)

// liveStatusBuckets maps the fleet provider's live driver status.
var liveStatusBuckets = map[string]string{
	"offline":       "Injoignable",
	"in_order_free": "Est disponible",
	"busy":          "En déplacement",
	"in_order_busy": "En déplacement",
}

// StatusDistribution counts drivers per status bucket. Drivers without a car
// count as "Pas de véhicule"; unknown live statuses count as unreachable.
// Every bucket is returned, in a fixed order, even when empty.
func StatusDistribution(drivers []domain.DriverPresence) []domain.StatusSlice {
	counts := make(map[string]int, len(statusBuckets))
	for _, d := range drivers {
		switch bucket, ok := liveStatusBuckets[d.CurrentStatus]; {
		case !d.HasCar:
			counts[bucketNoVehicle]++
		case ok:
			counts[bucket]++
		default:
			counts[bucketUnreachable]++
		}
	}

	slices := make([]domain.StatusSlice, 0, len(statusBuckets))
	for _, b := range statusBuckets {
		slices = append(slices, domain.StatusSlice{Name: b.name, Value: counts[b.name], Color: b.color})
	}
	return slices
}
