package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storeBack/internal/models"
	"storeBack/internal/repositories"
	"storeBack/utils"
)

const accessTokenTTL = 24 * time.Hour

// DeviceHandler registers app installs and issues access tokens. A device
// receives its secret once, at registration; the server keeps only the hash.
type DeviceHandler struct {
	Repo   *repositories.DeviceRepository
	Tokens *utils.Manager
}

func NewDeviceHandler(repo *repositories.DeviceRepository, tokens *utils.Manager) *DeviceHandler {
	return &DeviceHandler{Repo: repo, Tokens: tokens}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Platform string `json:"platform"`
		FCMToken string `json:"fcm_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform != "ios" && platform != "android" {
		http.Error(w, "platform must be ios or android", http.StatusBadRequest)
		return
	}

	secret, err := h.Tokens.NewRefreshToken()
	if err != nil {
		http.Error(w, "generate secret: "+err.Error(), http.StatusInternalServerError)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash secret: "+err.Error(), http.StatusInternalServerError)
		return
	}

	device := models.Device{
		ID:       uuid.NewString(),
		Platform: platform,
		FCMToken: req.FCMToken,
	}
	if err := h.Repo.Create(r.Context(), device, string(hash)); err != nil {
		http.Error(w, "register device: "+err.Error(), http.StatusInternalServerError)
		return
	}

	token, err := h.Tokens.NewJWT(device.ID, accessTokenTTL)
	if err != nil {
		http.Error(w, "issue token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"device_id":    device.ID,
		"secret":       secret,
		"access_token": token,
	})
}

func (h *DeviceHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
		Secret   string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := h.Repo.SecretHash(r.Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "load device: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Secret)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.Tokens.NewJWT(req.DeviceID, accessTokenTTL)
	if err != nil {
		http.Error(w, "issue token: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": token})
}

func (h *DeviceHandler) UpdateFCMToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
		FCMToken string `json:"fcm_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Repo.UpdateFCMToken(r.Context(), req.DeviceID, req.FCMToken); err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}
		http.Error(w, "update token: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
