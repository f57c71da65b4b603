package handler

import (
	"net/http"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
)

func ProfileHandler(customerSvc *service.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := customerSvc.Get(r.Context(), mw.UserFrom(r.Context()))
		if err != nil {
			writeOrderError(w, err, "get profile")
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// SaveMeasurementsHandler stores the customer's default measurements for a garment.
func SaveMeasurementsHandler(customerSvc *service.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req measurementsRequest
		if err := decodeValid(r, measurementUpdateLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		err := customerSvc.SaveMeasurements(r.Context(), mw.UserFrom(r.Context()), req.GarmentType, req.Measurements)
		if err != nil {
			writeOrderError(w, err, "save measurements")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListCustomersHandler returns every customer with order counts, by name.
func ListCustomersHandler(customerSvc *service.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := customerSvc.List(r.Context())
		if err != nil {
			writeOrderError(w, err, "list customers")
			return
		}
		if customers == nil {
			customers = []model.Customer{}
		}
		writeJSON(w, http.StatusOK, customers)
	}
}
