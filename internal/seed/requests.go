package seed

import (
	"context"
	"fmt"

	"movemarket/internal/store"
	"movemarket/internal/utils"
	"movemarket/pkg/types"
)

type sample struct {
	serviceType  string
	pickupCounty string
	pickupCity   string
	deliveryTo   [2]string // county, city
	name         string
	phone        string
	email        string
}

var samples = []sample{
	{"full-move", "Cluj", "Cluj-Napoca", [2]string{"Ilfov", "București"}, "Ana Pop", "0722000000", "ana@example.com"},
	{"furniture-only", "Timiș", "Timișoara", [2]string{"Cluj", "Cluj-Napoca"}, "Mihai Ionescu", "0733000000", "mihai@example.com"},
	{"full-move", "Brașov", "Brașov", [2]string{"Sibiu", "Sibiu"}, "Ioana Radu", "0744000000", "ioana@example.com"},
}

// SeedRequests materializes a few submitted requests, contact records
// included, for local development.
func SeedRequests(ctx context.Context, requests *store.RequestRepository) ([]string, error) {
	codes := make([]string, 0, len(samples))

	for i, s := range samples {
		request := &types.Request{
			Code:             utils.RequestCode(),
			UserID:           fmt.Sprintf("seed-user-%d", i+1),
			ServiceType:      s.serviceType,
			PickupProperty:   "apartment",
			PickupCounty:     s.pickupCounty,
			PickupCity:       s.pickupCity,
			DeliveryProperty: "house",
			DeliveryCounty:   s.deliveryTo[0],
			DeliveryCity:     s.deliveryTo[1],
			FlexibleDates:    true,
			SurveyMethod:     types.SurveyMethodVideoCall,
			MediaURLs:        []string{},
		}

		contact := &types.RequestContact{
			Name:  s.name,
			Phone: s.phone,
			Email: s.email,
		}

		if err := requests.Submit(ctx, request, contact); err != nil {
			return nil, fmt.Errorf("seed request %d: %w", i+1, err)
		}

		codes = append(codes, request.Code)
	}

	return codes, nil
}
