package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tailorshop/internal/model"
	"tailorshop/internal/mw"
	"tailorshop/internal/service"
	"tailorshop/internal/subscription"
	"tailorshop/internal/worker"
)

func viewerScope(r *http.Request) subscription.Scope {
	role := mw.RoleFrom(r.Context())
	if role == model.RoleTailor {
		return subscription.Scope{Role: role}
	}
	return subscription.Scope{Role: role, CustomerID: mw.UserFrom(r.Context())}
}

// ListOrdersHandler returns the caller's orders, newest first. Tailors see all.
func ListOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := orderSvc.List(r.Context(), viewerScope(r))
		if err != nil {
			writeOrderError(w, err, "list orders")
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func GetOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := orderSvc.Get(r.Context(), chi.URLParam(r, "id"))
		if err == nil && mw.RoleFrom(r.Context()) == model.RoleCustomer && o.CustomerID != mw.UserFrom(r.Context()) {
			err = service.ErrOrderNotFound
		}
		if err != nil {
			writeOrderError(w, err, "get order")
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

type createOrderRequest struct {
	service.OrderInput
	RememberMeasurements bool `json:"rememberMeasurements"`
}

// CreateOrderHandler places an order for the signed-in customer and, when
// asked, keeps its measurements as the default for that garment.
func CreateOrderHandler(orderSvc *service.OrderService, customerSvc *service.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := decodeValid(r, orderLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		customerID := mw.UserFrom(r.Context())
		customer, err := customerSvc.Get(r.Context(), customerID)
		if err != nil {
			writeOrderError(w, err, "load customer")
			return
		}

		o, err := orderSvc.Create(r.Context(), *customer, req.OrderInput)
		if err != nil {
			writeOrderError(w, err, "create order")
			return
		}
		slog.Info("order placed", "id", o.ID, "customer", customerID, "garment", o.GarmentType)

		if req.RememberMeasurements && len(o.Measurements) > 0 {
			if err := customerSvc.SaveMeasurements(r.Context(), customerID, o.GarmentType, o.Measurements); err != nil {
				slog.Warn("failed to remember measurements", "customer", customerID, "error", err)
			}
		}

		writeJSON(w, http.StatusCreated, o)
	}
}

func UpdateOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.OrderInput
		if err := decodeValid(r, orderLoader, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		o, err := orderSvc.UpdateByCustomer(r.Context(), mw.UserFrom(r.Context()), chi.URLParam(r, "id"), in)
		if err != nil {
			writeOrderError(w, err, "update order")
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

type manualOrderRequest struct {
	service.ManualOrderInput
	DueDate string `json:"dueDate"`
}

// ManualOrderHandler lets the tailor enter an order for a walk-in or
// existing customer, optionally overriding price and due date.
func ManualOrderHandler(orderSvc *service.OrderService, customerSvc *service.CustomerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualOrderRequest
		if err := decodeValid(r, manualOrderLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		in := req.ManualOrderInput
		if req.DueDate != "" {
			due, err := time.ParseInLocation(time.DateOnly, req.DueDate, time.Local)
			if err != nil {
				writeError(w, http.StatusBadRequest, "dueDate must be YYYY-MM-DD")
				return
			}
			in.DueDate = &due
		}
		if in.CustomerID != "" {
			c, err := customerSvc.Get(r.Context(), in.CustomerID)
			if err != nil {
				writeOrderError(w, err, "load customer")
				return
			}
			if in.CustomerPhone == "" {
				in.CustomerPhone = c.Phone
			}
			if in.CustomerEmail == "" {
				in.CustomerEmail = c.Email
			}
		}

		o, err := orderSvc.CreateManual(r.Context(), in)
		if err != nil {
			writeOrderError(w, err, "create manual order")
			return
		}
		slog.Info("manual order created", "id", o.ID, "customer", o.CustomerName)
		writeJSON(w, http.StatusCreated, o)
	}
}

type statusRequest struct {
	Status   model.Status `json:"status"`
	Progress int          `json:"progress"`
}

type statusResponse struct {
	Order      *model.Order `json:"order"`
	EmailSent  bool         `json:"emailSent"`
	EmailError string       `json:"emailError,omitempty"`
}

// UpdateStatusHandler moves an order along its lifecycle. Reaching ready or
// delivered emails the customer; a failed email is reported but the status
// change stands.
func UpdateStatusHandler(orderSvc *service.OrderService, emailClient *service.EmailClient, hub *worker.SessionHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := decodeValid(r, statusLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		o, previous, err := orderSvc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Progress)
		if err != nil {
			writeOrderError(w, err, "update status")
			return
		}
		slog.Info("order status updated", "id", o.ID, "from", previous, "to", o.Status)

		if o.Status.Terminal() {
			hub.ForgetDue(o.ID)
		}

		resp := statusResponse{Order: o}
		if previous != o.Status && service.EmailWorthy(o.Status) {
			if err := emailClient.SendStatusEmail(r.Context(), service.StatusEmailFor(*o)); err != nil {
				slog.Error("status email failed", "order", o.ID, "status", o.Status, "error", err)
				resp.EmailError = err.Error()
			} else {
				resp.EmailSent = emailClient.Enabled()
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type progressRequest struct {
	Progress int `json:"progress"`
}

func UpdateProgressHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req progressRequest
		if err := decodeValid(r, progressLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		o, err := orderSvc.UpdateProgress(r.Context(), chi.URLParam(r, "id"), req.Progress)
		if err != nil {
			writeOrderError(w, err, "update progress")
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

type measurementsRequest struct {
	GarmentType  string             `json:"garmentType"`
	Measurements model.Measurements `json:"measurements"`
}

func UpdateMeasurementsHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req measurementsRequest
		if err := decodeValid(r, measurementUpdateLoader, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		o, err := orderSvc.UpdateMeasurements(r.Context(), chi.URLParam(r, "id"), req.Measurements)
		if err != nil {
			writeOrderError(w, err, "update measurements")
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// UploadPhotosHandler stores multipart "photos" files and attaches them to
// the customer's order. Files already written are removed if attaching fails.
func UploadPhotosHandler(orderSvc *service.OrderService, photos *service.PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID := mw.UserFrom(r.Context())
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotosPerOrder*service.MaxPhotoBytes+(1<<20))
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()
		files := r.MultipartForm.File["photos"]
		if len(files) == 0 {
			writeError(w, http.StatusBadRequest, "no photos in request")
			return
		}

		o, err := orderSvc.Get(r.Context(), id)
		if err == nil && o.CustomerID != customerID {
			err = service.ErrOrderNotFound
		}
		if err == nil && !o.Status.Editable() {
			err = service.ErrOrderLocked
		}
		if err == nil && len(o.InspirationPhotos)+len(files) > service.MaxPhotosPerOrder {
			err = service.ErrTooManyPhotos
		}
		if err != nil {
			writeOrderError(w, err, "upload photos")
			return
		}

		saved := make([]model.Photo, 0, len(files))
		cleanup := func() {
			for _, p := range saved {
				if err := photos.Delete(p.URL); err != nil && !errors.Is(err, service.ErrPhotoNotFound) {
					slog.Warn("failed to remove photo", "url", p.URL, "error", err)
				}
			}
		}
		for _, fh := range files {
			if fh.Size > service.MaxPhotoBytes {
				cleanup()
				writeOrderError(w, service.ErrPhotoTooLarge, "upload photos")
				return
			}
			f, err := fh.Open()
			if err != nil {
				cleanup()
				writeError(w, http.StatusBadRequest, "unreadable upload")
				return
			}
			p, err := photos.Save(customerID, fh.Filename, f)
			f.Close()
			if err != nil {
				cleanup()
				writeOrderError(w, err, "save photo")
				return
			}
			saved = append(saved, p)
		}

		updated, err := orderSvc.AddPhotos(r.Context(), customerID, id, saved)
		if err != nil {
			cleanup()
			writeOrderError(w, err, "attach photos")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
