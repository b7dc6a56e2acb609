package workers

import (
	"context"
	"sync"
	"time"

	"sincrongrupos/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

// Manager mantém um reconciler por organização, criado sob demanda no primeiro
// acesso e encerrado todos juntos no shutdown.
type Manager struct {
	db           *gorm.DB
	gateway      StatusGateway
	webhookBase  string
	interval     time.Duration
	onDisconnect DisconnectNotifier

	mu          sync.Mutex
	reconcilers map[int64]*Reconciler
	cancels     map[int64]context.CancelFunc
}

func NewManager(db *gorm.DB, gateway StatusGateway, webhookBase string, interval time.Duration, onDisconnect DisconnectNotifier) *Manager {
	if interval <= 0 {
		interval = DEFAULT_POLL_INTERVAL
	}
	return &Manager{
		db:           db,
		gateway:      gateway,
		webhookBase:  webhookBase,
		interval:     interval,
		onDisconnect: onDisconnect,
		reconcilers:  map[int64]*Reconciler{},
		cancels:      map[int64]context.CancelFunc{},
	}
}

// Get devolve o reconciler da organização, criando e iniciando um se ainda
// não existir.
func (m *Manager) Get(orgID int64) (*Reconciler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.reconcilers[orgID]; ok {
		return r, nil
	}

	r := NewReconciler(m.db, m.gateway, orgID, m.webhookBase, m.interval, m.onDisconnect)
	if err := r.Load(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.reconcilers[orgID] = r
	m.cancels[orgID] = cancel
	go r.Run(ctx)

	log.Info().Int64("org_id", orgID).Msg("manager: reconciler criado")
	return r, nil
}

// Peek devolve o reconciler se ele já existe, sem criar um novo.
func (m *Manager) Peek(orgID int64) (*Reconciler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reconcilers[orgID]
	return r, ok
}

// Pause suspende o polling da organização, se houver reconciler ativo.
func (m *Manager) Pause(orgID int64) {
	if r, ok := m.Peek(orgID); ok {
		r.Pause()
	}
}

// Resume religa o polling com refresh imediato.
func (m *Manager) Resume(orgID int64) {
	if r, ok := m.Peek(orgID); ok {
		r.Resume()
	}
}

// Shutdown cancela todos os reconcilers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for orgID, cancel := range m.cancels {
		cancel()
		delete(m.cancels, orgID)
		delete(m.reconcilers, orgID)
	}
	log.Info().Msg("manager: reconcilers encerrados")
}

// NotifyHistoryOnDisconnect devolve um notifier padrão que registra a queda
// no histórico da instância.
func NotifyHistoryOnDisconnect(db *gorm.DB) DisconnectNotifier {
	return func(inst models.Instance) {
		details := map[string]any{"nome": inst.NomeInstancia}
		if inst.LastDisconnectReason != "" {
			details["motivo"] = inst.LastDisconnectReason
		}
		if err := models.AppendHistory(db, inst.ID, models.HISTORY_EVENT_DISCONNECTED, details); err != nil {
			log.Error().Err(err).Int64("instance_id", inst.ID).Msg("manager: falha ao registrar desconexão no histórico")
		}
	}
}
