package fixture

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-formflow/pkg/engine"
)

// Handler exposes the backend over the runtime HTTP contract:
//
//	POST /api/v1/runtime/next-screen
//	GET  /api/v1/master-data
//	POST /api/otp/send
//	GET  /api/otp/verify, POST /api/otp/verify
//	POST /api/verify/{name}
//	GET  /api/options/*
func Handler(b *Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	RegisterRoutes(r, b)
	return r
}

// RegisterRoutes mounts the runtime routes on r.
func RegisterRoutes(r chi.Router, b *Backend) {
	h := &handler{backend: b}
	r.Route("/api", func(r chi.Router) {
		r.Post("/v1/runtime/next-screen", h.nextScreen)
		r.Get("/v1/master-data", h.masterData)
		r.Post("/otp/send", h.sendCode)
		r.Get("/otp/verify", h.verifyCode)
		r.Post("/otp/verify", h.verifyCode)
		r.Post("/verify/{name}", h.verify)
		r.Get("/options/*", h.options)
	})
}

type handler struct {
	backend *Backend
}

type nextScreenBody struct {
	NextScreenID string          `json:"nextScreenId"`
	ScreenConfig json.RawMessage `json:"screenConfig"`
	Message      string          `json:"message,omitempty"`
}

func (h *handler) nextScreen(w http.ResponseWriter, r *http.Request) {
	var req engine.NextScreenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	id, err := h.backend.route(req)
	switch {
	case errors.Is(err, ErrUnknownFlow), errors.Is(err, ErrUnknownScreen):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	case err != nil:
		log.Printf("fixture: next screen: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	body := nextScreenBody{NextScreenID: id, ScreenConfig: json.RawMessage("null")}
	if id == "" {
		body.Message = h.backend.flow.CompleteMessage
	} else {
		s, _ := h.backend.flow.Screen(id)
		body.ScreenConfig = s.Raw
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) masterData(w http.ResponseWriter, _ *http.Request) {
	all := h.backend.flow.MasterData
	if all == nil {
		all = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, all)
}

type codeBody struct {
	FieldID string `json:"fieldId"`
	Value   string `json:"value"`
	Channel string `json:"channel,omitempty"`
	OTP     string `json:"otp,omitempty"`
}

func (h *handler) sendCode(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	status, resp := h.backend.sendCode(body.FieldID, body.Value)
	writeJSON(w, status, resp)
}

func (h *handler) verifyCode(w http.ResponseWriter, r *http.Request) {
	var body codeBody
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		body = codeBody{FieldID: q.Get("fieldId"), Value: q.Get("value"), OTP: q.Get("otp")}
	} else if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	status, resp := h.backend.verifyCode(body.OTP)
	writeJSON(w, status, resp)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	payload := map[string]any{}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	status, resp, err := h.backend.verify(name, "", payload)
	if errors.Is(err, ErrUnknownVerification) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeJSON(w, status, resp)
}

func (h *handler) options(w http.ResponseWriter, r *http.Request) {
	endpoint := endpointPath(r.URL.Path)
	set, ok := h.backend.flow.Options[endpoint]
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no options for "+endpoint)
		return
	}
	param := ""
	if set.Param != "" {
		param = r.URL.Query().Get(set.Param)
	}
	list, err := h.backend.options(endpoint, param)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("fixture: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"message": message,
		"code":    code,
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
