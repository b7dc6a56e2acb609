package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UazapiAPIError carrega o status e o corpo devolvidos pelo gateway para log;
// a mensagem exposta ao usuário nunca inclui o corpo.
type UazapiAPIError struct {
	StatusCode int
	Body       string
}

func (e UazapiAPIError) Error() string {
	return fmt.Sprintf("uazapi error: status=%d body=%s", e.StatusCode, e.Body)
}

// UazapiClient é um cliente fino para o gateway de mensageria (UAZAPI).
// Operações administrativas (criar/listar/deletar) usam o admintoken; operações
// de instância usam o token da própria instância.
type UazapiClient struct {
	BaseURL    string
	AdminToken string
	HTTPClient *http.Client
}

func NewUazapiClient(baseURL, adminToken string) *UazapiClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.uazapi.com"
	}
	return &UazapiClient{
		BaseURL:    baseURL,
		AdminToken: adminToken,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GatewayInstance é o shape normalizado de uma instância como o endpoint
// batched /instance/all devolve.
type GatewayInstance struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Token                string `json:"token"`
	Status               string `json:"status"` // connected | disconnected | connecting
	ProfileName          string `json:"profileName"`
	ProfilePicURL        string `json:"profilePicUrl"`
	IsBusiness           bool   `json:"isBusiness"`
	Platform             string `json:"plataform"` // sic: o gateway escreve "plataform"
	LastDisconnect       string `json:"lastDisconnect"`
	LastDisconnectReason string `json:"lastDisconnectReason"`
}

// InstanceStatus é o status de uma única instância, já com o telefone extraído
// do JID e normalizado.
type InstanceStatus struct {
	Connected            bool
	LoggedIn             bool
	PhoneNumber          string
	PhoneFormatted       string
	ProfileName          string
	ProfilePicURL        string
	IsBusiness           bool
	Platform             string
	LastDisconnect       string
	LastDisconnectReason string
}

// ConnectResult é a resposta do início de pareamento: ou já está conectado,
// ou veio um QR code com validade curta.
type ConnectResult struct {
	Connected bool
	QRCode    string
}

func (c *UazapiClient) do(ctx context.Context, method, path string, headers map[string]string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, UazapiAPIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// CreateInstance provisiona uma instância no gateway e devolve a credencial.
// O gateway já devolveu a credencial como "token" e como "apikey" em versões
// diferentes; aceitamos os dois nomes.
func (c *UazapiClient) CreateInstance(ctx context.Context, name, systemName, adminField01 string) (string, error) {
	payload := map[string]any{
		"name":       name,
		"systemName": systemName,
	}
	if adminField01 != "" {
		payload["adminField01"] = adminField01
	}

	raw, err := c.do(ctx, http.MethodPost, "/instance/init", map[string]string{"admintoken": c.AdminToken}, payload)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Instance struct {
			Token  string `json:"token"`
			Apikey string `json:"apikey"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("uazapi: resposta inválida do init: %w", err)
	}

	token := strings.TrimSpace(parsed.Instance.Token)
	if token == "" {
		token = strings.TrimSpace(parsed.Instance.Apikey)
	}
	if token == "" {
		return "", fmt.Errorf("uazapi: token não recebido na criação da instância")
	}
	return token, nil
}

// DeleteInstance remove a instância do gateway.
func (c *UazapiClient) DeleteInstance(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodDelete, "/instance/delete/"+token, map[string]string{"admintoken": c.AdminToken}, nil)
	return err
}

// AllStatuses busca o status de todas as instâncias em uma única chamada
// (escopo admin). Preferida pelo loop de reconciliação a N chamadas unitárias.
func (c *UazapiClient) AllStatuses(ctx context.Context) ([]GatewayInstance, error) {
	raw, err := c.do(ctx, http.MethodGet, "/instance/all", map[string]string{"admintoken": c.AdminToken}, nil)
	if err != nil {
		return nil, err
	}

	var instances []GatewayInstance
	if err := json.Unmarshal(raw, &instances); err != nil {
		return nil, fmt.Errorf("uazapi: resposta inválida do /instance/all: %w", err)
	}
	return instances, nil
}

// Status busca o status de uma instância pelo token dela, normalizando o shape
// frouxo do gateway (jid string/objeto, owner como fallback) na fronteira.
func (c *UazapiClient) Status(ctx context.Context, token string) (*InstanceStatus, error) {
	raw, err := c.do(ctx, http.MethodGet, "/instance/status", map[string]string{"token": token}, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Status struct {
			Connected bool `json:"connected"`
			LoggedIn  bool `json:"loggedIn"`
			JID       any  `json:"jid"`
		} `json:"status"`
		Instance struct {
			Owner                any    `json:"owner"`
			ProfileName          string `json:"profileName"`
			ProfilePicURL        string `json:"profilePicUrl"`
			IsBusiness           bool   `json:"isBusiness"`
			Platform             string `json:"plataform"`
			LastDisconnect       string `json:"lastDisconnect"`
			LastDisconnectReason string `json:"lastDisconnectReason"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("uazapi: resposta inválida do /instance/status: %w", err)
	}

	phone := ExtractPhoneFromJID(parsed.Status.JID)
	if phone == "" {
		phone = ExtractPhoneFromJID(parsed.Instance.Owner)
	}

	return &InstanceStatus{
		Connected:            parsed.Status.Connected,
		LoggedIn:             parsed.Status.LoggedIn,
		PhoneNumber:          phone,
		PhoneFormatted:       FormatPhoneNumber(phone),
		ProfileName:          parsed.Instance.ProfileName,
		ProfilePicURL:        parsed.Instance.ProfilePicURL,
		IsBusiness:           parsed.Instance.IsBusiness,
		Platform:             parsed.Instance.Platform,
		LastDisconnect:       parsed.Instance.LastDisconnect,
		LastDisconnectReason: parsed.Instance.LastDisconnectReason,
	}, nil
}

// Connect inicia o pareamento por QR code. Se a instância já estiver conectada
// o gateway sinaliza isso ao invés de devolver QR.
func (c *UazapiClient) Connect(ctx context.Context, token string) (*ConnectResult, error) {
	raw, err := c.do(ctx, http.MethodPost, "/instance/connect", map[string]string{"token": token}, map[string]any{})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Connected bool   `json:"connected"`
		QRCode    string `json:"qrcode"`
		Instance  struct {
			Status string `json:"status"`
			QRCode string `json:"qrcode"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("uazapi: resposta inválida do /instance/connect: %w", err)
	}

	if parsed.Connected || parsed.Instance.Status == "connected" {
		return &ConnectResult{Connected: true}, nil
	}

	qr := parsed.QRCode
	if qr == "" {
		qr = parsed.Instance.QRCode
	}
	if qr == "" {
		return nil, fmt.Errorf("uazapi: QR code não recebido")
	}
	return &ConnectResult{QRCode: qr}, nil
}

// Disconnect derruba a sessão da instância sem removê-la.
func (c *UazapiClient) Disconnect(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/instance/disconnect", map[string]string{"token": token}, map[string]any{})
	return err
}

// SetWebhook configura o webhook de eventos da instância. A URL de destino é
// sempre decidida no servidor; nunca aceitamos URL vinda do cliente.
func (c *UazapiClient) SetWebhook(ctx context.Context, token, webhookURL string) error {
	payload := map[string]any{
		"url":           webhookURL,
		"enabled":       true,
		"excludeEvents": []string{},
	}
	_, err := c.do(ctx, http.MethodPost, "/webhook", map[string]string{"token": token}, payload)
	return err
}
