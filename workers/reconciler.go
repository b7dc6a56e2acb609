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

const DEFAULT_POLL_INTERVAL = 30 * time.Second

// MAX_POLL_FAILURES é o limite de falhas consecutivas de polling antes de
// forçar todas as instâncias para "erro".
const MAX_POLL_FAILURES = 3

const pollFailureReason = "Erro ao verificar status"

// StatusGateway é o recorte do gateway que o loop de reconciliação usa.
type StatusGateway interface {
	AllStatuses(ctx context.Context) ([]tools.GatewayInstance, error)
	SetWebhook(ctx context.Context, token, webhookURL string) error
}

// DisconnectNotifier é chamado uma vez por queda inesperada detectada.
type DisconnectNotifier func(inst models.Instance)

// Reconciler reconcilia o estado local das instâncias de uma organização com a
// verdade do gateway, um tick por vez. Todo o estado mutável (snapshot do tick
// anterior, conjunto de desconectadas, contador de falhas) vive aqui dentro;
// o resto do sistema só enxerga cópias via Snapshot/Disconnected.
type Reconciler struct {
	db           *gorm.DB
	gateway      StatusGateway
	webhookBase  string
	orgID        int64
	interval     time.Duration
	onDisconnect DisconnectNotifier

	mu              sync.Mutex
	instances       []models.Instance
	prevStatus      map[int64]string
	disconnected    map[int64]models.Instance
	bannerDismissed bool
	failures        int
	ticking         bool
	paused          bool
	refresh         chan struct{}
}

func NewReconciler(db *gorm.DB, gateway StatusGateway, orgID int64, webhookBase string, interval time.Duration, onDisconnect DisconnectNotifier) *Reconciler {
	if interval <= 0 {
		interval = DEFAULT_POLL_INTERVAL
	}
	return &Reconciler{
		db:           db,
		gateway:      gateway,
		webhookBase:  webhookBase,
		orgID:        orgID,
		interval:     interval,
		onDisconnect: onDisconnect,
		prevStatus:   map[int64]string{},
		disconnected: map[int64]models.Instance{},
		refresh:      make(chan struct{}, 1),
	}
}

// Load carrega as instâncias ativas da organização e inicializa o snapshot de
// status com os valores persistidos.
func (r *Reconciler) Load() error {
	var instances []models.Instance
	err := r.db.
		Where("id_organizacao = ? AND ativo = ?", r.orgID, true).
		Order("created_at desc").
		Find(&instances).Error
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = instances
	snap := make(map[int64]string, len(instances))
	for _, inst := range instances {
		snap[inst.ID] = statusOrDefault(inst.Status)
	}
	r.prevStatus = snap
	return nil
}

// Run roda o loop de ticks até o contexto ser cancelado. Um único timer dispara
// os ticks; Resume injeta um refresh imediato sem esperar a próxima borda do
// intervalo.
func (r *Reconciler) Run(ctx context.Context) {
	log.Info().Int64("org_id", r.orgID).Dur("interval", r.interval).Msg("reconciler: iniciado")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("org_id", r.orgID).Msg("reconciler: encerrado")
			return
		case <-r.refresh:
			if err := r.Tick(ctx); err != nil {
				log.Warn().Err(err).Int64("org_id", r.orgID).Msg("reconciler: tick de refresh falhou")
			}
		case <-ticker.C:
			if r.isPaused() {
				continue
			}
			if err := r.Tick(ctx); err != nil {
				log.Warn().Err(err).Int64("org_id", r.orgID).Msg("reconciler: tick falhou")
			}
		}
	}
}

// Pause suspende os ticks periódicos (aba em segundo plano).
func (r *Reconciler) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

// Resume religa os ticks e dispara um refresh imediato.
func (r *Reconciler) Resume() {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	select {
	case r.refresh <- struct{}{}:
	default:
	}
}

func (r *Reconciler) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Tick executa um ciclo de reconciliação: busca o status de todas as
// instâncias em uma chamada, detecta transições contra o snapshot do tick
// ANTERIOR e só então substitui o snapshot inteiro. Ticks nunca se sobrepõem:
// se um ainda está rodando, o próximo é pulado.
func (r *Reconciler) Tick(ctx context.Context) error {
	r.mu.Lock()
	if r.ticking {
		r.mu.Unlock()
		return nil
	}
	if len(r.instances) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.ticking = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.ticking = false
		r.mu.Unlock()
	}()

	statuses, err := r.gateway.AllStatuses(ctx)
	if err != nil {
		// Resposta atrasada de um loop cancelado não pode mutar estado.
		if ctx.Err() != nil {
			return nil
		}
		return r.recordFailure(err)
	}
	if ctx.Err() != nil {
		return nil
	}

	byToken := make(map[string]tools.GatewayInstance, len(statuses))
	for _, s := range statuses {
		byToken[s.Token] = s
	}

	r.mu.Lock()
	r.failures = 0

	newSnap := make(map[int64]string, len(r.instances))
	var newlyDisconnected []models.Instance
	var needWebhook []models.Instance
	var changed []models.Instance

	for i := range r.instances {
		inst := &r.instances[i]
		prev := statusOrDefault(r.prevStatus[inst.ID])

		gw, ok := byToken[inst.ApiKey]
		if inst.ApiKey == "" || !ok {
			// Sem registro no gateway: mantém o que sabíamos.
			newSnap[inst.ID] = statusOrDefault(inst.Status)
			continue
		}

		if gw.Status == "connected" {
			inst.Status = models.INSTANCE_STATUS_CONECTADO
		} else {
			inst.Status = models.INSTANCE_STATUS_DESCONECTADO
		}
		mergeProfile(inst, gw)

		if prev == models.INSTANCE_STATUS_CONECTADO && inst.Status == models.INSTANCE_STATUS_DESCONECTADO {
			newlyDisconnected = append(newlyDisconnected, *inst)
		}
		if prev != models.INSTANCE_STATUS_CONECTADO && inst.Status == models.INSTANCE_STATUS_CONECTADO {
			if inst.WebhookURL == "" {
				needWebhook = append(needWebhook, *inst)
			}
		}
		if inst.Status == models.INSTANCE_STATUS_CONECTADO {
			delete(r.disconnected, inst.ID)
		}

		newSnap[inst.ID] = inst.Status
		changed = append(changed, *inst)
	}

	// Substituição atômica: todas as comparações acima usaram o mesmo snapshot.
	r.prevStatus = newSnap

	for _, inst := range newlyDisconnected {
		// Uma queda nova rearma o banner mesmo que tenha sido dispensado antes.
		r.bannerDismissed = false
		r.disconnected[inst.ID] = inst
	}
	r.mu.Unlock()

	for _, inst := range newlyDisconnected {
		log.Warn().Int64("instance_id", inst.ID).Str("nome", inst.NomeInstancia).Msg("reconciler: desconexão inesperada")
		if r.onDisconnect != nil {
			r.onDisconnect(inst)
		}
	}

	for _, inst := range needWebhook {
		go r.configureWebhook(inst)
	}

	r.persist(changed)
	return nil
}

// recordFailure conta falhas consecutivas de polling; na terceira, todas as
// instâncias vão para "erro" e a detecção de transições fica suspensa até um
// tick bem-sucedido zerar o contador.
func (r *Reconciler) recordFailure(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures++
	log.Warn().Err(err).Int("failures", r.failures).Int64("org_id", r.orgID).Msg("reconciler: falha ao buscar status do gateway")

	if r.failures >= MAX_POLL_FAILURES {
		for i := range r.instances {
			r.instances[i].Status = models.INSTANCE_STATUS_ERRO
			r.instances[i].LastDisconnectReason = pollFailureReason
			r.prevStatus[r.instances[i].ID] = models.INSTANCE_STATUS_ERRO
		}
	}
	return err
}

// configureWebhook provisiona o webhook da instância uma única vez após a
// primeira conexão, apontando para a rota de recebimento da própria instância.
// Best-effort: falha é logada e não reverte o status; o webhook pode ser
// configurado manualmente depois.
func (r *Reconciler) configureWebhook(inst models.Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	webhookURL := tools.WebhookURLFor(r.webhookBase, inst.ID)
	if err := r.gateway.SetWebhook(ctx, inst.ApiKey, webhookURL); err != nil {
		log.Error().Err(err).Int64("instance_id", inst.ID).Msg("reconciler: falha ao configurar webhook")
		return
	}

	r.mu.Lock()
	for i := range r.instances {
		if r.instances[i].ID == inst.ID {
			r.instances[i].WebhookURL = webhookURL
			break
		}
	}
	r.mu.Unlock()

	if err := r.db.Model(&models.Instance{}).
		Where("id = ?", inst.ID).
		Update("webhook_url", webhookURL).Error; err != nil {
		log.Error().Err(err).Int64("instance_id", inst.ID).Msg("reconciler: falha ao persistir webhook_url")
	}
	log.Info().Int64("instance_id", inst.ID).Str("nome", inst.NomeInstancia).Msg("reconciler: webhook configurado")
}

// persist grava status e perfil atualizados; falha aqui não afeta o tick.
func (r *Reconciler) persist(instances []models.Instance) {
	for _, inst := range instances {
		err := r.db.Model(&models.Instance{}).
			Where("id = ?", inst.ID).
			Updates(map[string]any{
				"status":                 inst.Status,
				"numero_telefone":        inst.NumeroTelefone,
				"profile_name":           inst.ProfileName,
				"profile_pic_url":        inst.ProfilePicURL,
				"is_business":            inst.IsBusiness,
				"platform":               inst.Platform,
				"last_disconnect_reason": inst.LastDisconnectReason,
			}).Error
		if err != nil {
			log.Warn().Err(err).Int64("instance_id", inst.ID).Msg("reconciler: falha ao persistir status")
		}
	}
}

// Snapshot devolve uma cópia imutável das instâncias rastreadas.
func (r *Reconciler) Snapshot() []models.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Disconnected devolve o conjunto atual de instâncias caídas (para o banner),
// junto com a flag de dispensa.
func (r *Reconciler) Disconnected() ([]models.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Instance, 0, len(r.disconnected))
	for _, inst := range r.disconnected {
		out = append(out, inst)
	}
	return out, r.bannerDismissed
}

// DismissBanner limpa o conjunto de desconectadas e suprime o banner até a
// próxima queda nova.
func (r *Reconciler) DismissBanner() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannerDismissed = true
	r.disconnected = map[int64]models.Instance{}
}

// Track passa a acompanhar uma instância recém-criada.
func (r *Reconciler) Track(inst models.Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.instances {
		if existing.ID == inst.ID {
			return
		}
	}
	r.instances = append([]models.Instance{inst}, r.instances...)
	r.prevStatus[inst.ID] = statusOrDefault(inst.Status)
}

// Untrack remove uma instância deletada de todo o estado do loop.
func (r *Reconciler) Untrack(instanceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, inst := range r.instances {
		if inst.ID == instanceID {
			r.instances = append(r.instances[:i], r.instances[i+1:]...)
			break
		}
	}
	delete(r.prevStatus, instanceID)
	delete(r.disconnected, instanceID)
}

// SetStatus aplica uma atualização otimista vinda de ação manual
// (desconectar). O snapshot do tick anterior NÃO muda: a detecção de
// transições continua comparando contra o último tick, nunca contra valores
// otimistas intermediários.
func (r *Reconciler) SetStatus(instanceID int64, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.instances {
		if r.instances[i].ID == instanceID {
			r.instances[i].Status = status
			return
		}
	}
}

// MarkConnected registra o sucesso de um pareamento manual: remove do conjunto
// de desconectadas e atualiza o snapshot para o novo estado estável.
func (r *Reconciler) MarkConnected(instanceID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disconnected, instanceID)
	for i := range r.instances {
		if r.instances[i].ID == instanceID {
			r.instances[i].Status = models.INSTANCE_STATUS_CONECTADO
			break
		}
	}
	r.prevStatus[instanceID] = models.INSTANCE_STATUS_CONECTADO
}

func mergeProfile(inst *models.Instance, gw tools.GatewayInstance) {
	if gw.ProfileName != "" {
		inst.ProfileName = gw.ProfileName
	}
	if gw.ProfilePicURL != "" {
		inst.ProfilePicURL = gw.ProfilePicURL
	}
	inst.IsBusiness = gw.IsBusiness
	if gw.Platform != "" {
		inst.Platform = gw.Platform
	}
	if gw.LastDisconnectReason != "" {
		inst.LastDisconnectReason = gw.LastDisconnectReason
	}
}

func statusOrDefault(status string) string {
	if status == "" {
		return models.INSTANCE_STATUS_DESCONECTADO
	}
	return status
}
