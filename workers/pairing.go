package workers

import (
	"context"
	"sync"
	"time"

	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

// Estados de uma sessão de pareamento por QR code.
const (
	PAIRING_STATE_LOADING   = "loading"
	PAIRING_STATE_WAITING   = "waiting"
	PAIRING_STATE_CONNECTED = "connected"
	PAIRING_STATE_ERROR     = "error"
)

// QR_VALIDITY é a janela de validade de um QR code antes da regeneração
// automática.
const QR_VALIDITY = 120 * time.Second

// PAIRING_POLL_INTERVAL é o intervalo curto de verificação enquanto o QR está
// na tela.
const PAIRING_POLL_INTERVAL = 3 * time.Second

// PAIRING_CLOSE_DELAY é quanto tempo a sessão permanece viva após conectar,
// para o cliente ler o estado final antes do descarte.
const PAIRING_CLOSE_DELAY = 1500 * time.Millisecond

// PairingGateway é o recorte do gateway usado pelo fluxo de pareamento.
type PairingGateway interface {
	Connect(ctx context.Context, token string) (*tools.ConnectResult, error)
	Status(ctx context.Context, token string) (*tools.InstanceStatus, error)
}

// PairingSession acompanha o ciclo de vida de um pareamento: gera o QR,
// verifica a conexão a cada poucos segundos, regenera o QR quando expira e
// registra o evento no histórico quando conecta.
type PairingSession struct {
	db       *gorm.DB
	gateway  PairingGateway
	instance models.Instance
	onPaired func(instanceID int64)

	mu        sync.Mutex
	state     string
	qrCode    string
	qrIssued  time.Time
	errMsg    string
	phone     string
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewPairingSession(db *gorm.DB, gateway PairingGateway, inst models.Instance, onPaired func(instanceID int64)) *PairingSession {
	return &PairingSession{
		db:       db,
		gateway:  gateway,
		instance: inst,
		onPaired: onPaired,
		state:    PAIRING_STATE_LOADING,
	}
}

// Start dispara o fluxo em background. Idempotente por sessão.
func (s *PairingSession) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.run(ctx)
}

// Stop encerra a sessão sem esperar o pareamento completar.
func (s *PairingSession) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *PairingSession) run(ctx context.Context) {
	if err := s.requestQR(ctx); err != nil {
		return
	}

	ticker := time.NewTicker(PAIRING_POLL_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			state := s.state
			expired := s.state == PAIRING_STATE_WAITING && time.Since(s.qrIssued) >= QR_VALIDITY
			s.mu.Unlock()

			if state == PAIRING_STATE_CONNECTED || state == PAIRING_STATE_ERROR {
				return
			}

			if expired {
				log.Info().Int64("instance_id", s.instance.ID).Msg("pairing: QR expirado, regenerando")
				if err := s.requestQR(ctx); err != nil {
					return
				}
				continue
			}

			s.checkStatus(ctx)
		}
	}
}

// requestQR pede um QR novo ao gateway. Se a instância já estiver conectada o
// pareamento termina na hora.
func (s *PairingSession) requestQR(ctx context.Context) error {
	s.mu.Lock()
	s.state = PAIRING_STATE_LOADING
	s.mu.Unlock()

	result, err := s.gateway.Connect(ctx, s.instance.ApiKey)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Int64("instance_id", s.instance.ID).Msg("pairing: falha ao gerar QR code")
		s.fail("Falha ao gerar QR code")
		return err
	}

	if result.Connected {
		s.complete(ctx, "")
		return nil
	}

	s.mu.Lock()
	s.state = PAIRING_STATE_WAITING
	s.qrCode = result.QRCode
	s.qrIssued = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *PairingSession) checkStatus(ctx context.Context) {
	status, err := s.gateway.Status(ctx, s.instance.ApiKey)
	if err != nil {
		// Falha transitória de verificação não invalida o QR na tela.
		log.Warn().Err(err).Int64("instance_id", s.instance.ID).Msg("pairing: falha ao verificar status")
		return
	}
	if ctx.Err() != nil {
		return
	}
	if status.Connected && status.LoggedIn {
		s.complete(ctx, status.PhoneNumber)
	}
}

// complete marca a sessão como conectada, persiste o número pareado e anota o
// histórico. A sessão fica legível por um curto intervalo antes de encerrar.
func (s *PairingSession) complete(ctx context.Context, phone string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = PAIRING_STATE_CONNECTED
		s.phone = phone
		s.qrCode = ""
		s.mu.Unlock()

		updates := map[string]any{"status": models.INSTANCE_STATUS_CONECTADO}
		if phone != "" {
			updates["numero_telefone"] = phone
		}
		if err := s.db.Model(&models.Instance{}).
			Where("id = ?", s.instance.ID).
			Updates(updates).Error; err != nil {
			log.Error().Err(err).Int64("instance_id", s.instance.ID).Msg("pairing: falha ao persistir conexão")
		}

		details := map[string]any{"nome": s.instance.NomeInstancia}
		if phone != "" {
			details["telefone"] = tools.FormatPhoneNumber(phone)
		}
		if err := models.AppendHistory(s.db, s.instance.ID, models.HISTORY_EVENT_CONNECTED, details); err != nil {
			log.Error().Err(err).Int64("instance_id", s.instance.ID).Msg("pairing: falha ao registrar conexão no histórico")
		}

		if s.onPaired != nil {
			s.onPaired(s.instance.ID)
		}

		log.Info().Int64("instance_id", s.instance.ID).Str("telefone", phone).Msg("pairing: instância conectada")

		go func() {
			time.Sleep(PAIRING_CLOSE_DELAY)
			s.Stop()
		}()
	})
}

// fail marca a sessão com erro e desfaz o "conectando" otimista, devolvendo a
// instância ao status que tinha antes do pareamento começar.
func (s *PairingSession) fail(msg string) {
	s.mu.Lock()
	s.state = PAIRING_STATE_ERROR
	s.errMsg = msg
	s.qrCode = ""
	s.mu.Unlock()

	previous := s.instance.Status
	if previous == "" || previous == models.INSTANCE_STATUS_CONECTANDO {
		previous = models.INSTANCE_STATUS_DESCONECTADO
	}
	if err := s.db.Model(&models.Instance{}).
		Where("id = ?", s.instance.ID).
		Update("status", previous).Error; err != nil {
		log.Warn().Err(err).Int64("instance_id", s.instance.ID).Msg("pairing: falha ao reverter status")
	}
}

// PairingSnapshot é o estado corrente da sessão exposto ao cliente.
type PairingSnapshot struct {
	State     string `json:"state"`
	QRCode    string `json:"qr_code,omitempty"`
	ExpiresIn int    `json:"expires_in,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Snapshot devolve uma visão consistente da sessão.
func (s *PairingSession) Snapshot() PairingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := PairingSnapshot{State: s.state, Error: s.errMsg}
	if s.state == PAIRING_STATE_WAITING {
		snap.QRCode = s.qrCode
		remaining := QR_VALIDITY - time.Since(s.qrIssued)
		if remaining < 0 {
			remaining = 0
		}
		snap.ExpiresIn = int(remaining.Seconds())
	}
	if s.state == PAIRING_STATE_CONNECTED && s.phone != "" {
		snap.Phone = tools.FormatPhoneNumber(s.phone)
	}
	return snap
}

// PairingRegistry guarda no máximo uma sessão de pareamento por instância.
type PairingRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*PairingSession
}

func NewPairingRegistry() *PairingRegistry {
	return &PairingRegistry{sessions: map[int64]*PairingSession{}}
}

// Begin cria (ou substitui) a sessão de pareamento da instância e a inicia.
func (r *PairingRegistry) Begin(db *gorm.DB, gateway PairingGateway, inst models.Instance, onPaired func(instanceID int64)) *PairingSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[inst.ID]; ok {
		existing.Stop()
	}

	session := NewPairingSession(db, gateway, inst, onPaired)
	r.sessions[inst.ID] = session
	session.Start()
	return session
}

// Lookup devolve a sessão ativa da instância, se houver.
func (r *PairingRegistry) Lookup(instanceID int64) (*PairingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[instanceID]
	return s, ok
}

// End encerra e remove a sessão da instância.
func (r *PairingRegistry) End(instanceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[instanceID]; ok {
		s.Stop()
		delete(r.sessions, instanceID)
	}
}
