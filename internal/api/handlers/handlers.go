// Package handlers implements the HTTP API of the agent orchestration
// control plane. Handlers depend only on pkg/contracts interfaces.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/configrepo"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/deploy"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/contracts"
	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds request bodies; configurations are small.
const maxBodyBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Configs contracts.ConfigRepository
	Stacks  contracts.StackOrchestrator
	Agents  contracts.DeploymentService
}

// New creates a new Handlers instance.
func New(configs contracts.ConfigRepository, stacks contracts.StackOrchestrator, agents contracts.DeploymentService) *Handlers {
	return &Handlers{Configs: configs, Stacks: stacks, Agents: agents}
}

// ══════════════════════════════════════════════════════════════
// ── Configuration Handlers ───────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Configs.Load(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// SaveConfig accepts the same loose shapes the repository tolerates in
// stored records.
func (h *Handlers) SaveConfig(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	body, err := readBody(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	cfg, err := configrepo.DecodeSubmission(body)
	if err != nil {
		respondErr(w, err)
		return
	}
	res, err := h.Configs.Save(r.Context(), agentName, cfg)
	if err != nil {
		respondErr(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

func (h *Handlers) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	report, err := h.Configs.Delete(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	status := http.StatusOK
	if len(report.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, report)
}

func (h *Handlers) ListPrompts(w http.ResponseWriter, r *http.Request) {
	idx, err := h.Configs.ListPrompts(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if idx == nil {
		idx = models.SystemPromptIndex{}
	}
	respondJSON(w, http.StatusOK, idx)
}

func (h *Handlers) ListConfigs(w http.ResponseWriter, r *http.Request) {
	names, err := h.Configs.ListAgents(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, names)
}

// ══════════════════════════════════════════════════════════════
// ── Stack Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// stackRequest carries extra stack parameters. AgentName and ImageTag are
// always set by the orchestrator.
type stackRequest struct {
	Parameters map[string]string `json:"parameters"`
}

func (h *Handlers) decodeStackRequest(w http.ResponseWriter, r *http.Request) (*stackRequest, error) {
	body, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	req := &stackRequest{}
	if len(body) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, &models.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return req, nil
}

func (h *Handlers) ListStacks(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Stacks.List(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if agents == nil {
		agents = []models.DeployedAgent{}
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetStack(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Stacks.Describe(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

func (h *Handlers) CreateStack(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	req, err := h.decodeStackRequest(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	desc, err := h.Stacks.Create(r.Context(), agentName, req.Parameters)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, desc)
}

func (h *Handlers) UpdateStack(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	req, err := h.decodeStackRequest(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	desc, err := h.Stacks.Update(r.Context(), agentName, req.Parameters)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

func (h *Handlers) DeployStack(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	req, err := h.decodeStackRequest(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	desc, err := h.Stacks.Deploy(r.Context(), agentName, req.Parameters)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

func (h *Handlers) DeleteStack(w http.ResponseWriter, r *http.Request) {
	desc, err := h.Stacks.Delete(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, desc)
}

// ══════════════════════════════════════════════════════════════
// ── Agent Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Agents.ListAgents(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	if agents == nil {
		agents = []deploy.AgentSummary{}
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	st, err := h.Agents.AgentStatus(r.Context(), chi.URLParam(r, "agentName"))
	if err != nil {
		respondErr(w, err)
		return
	}
	if !st.Configured && st.Stack == nil && st.ConfigError == "" && st.StackError == "" {
		respondError(w, http.StatusNotFound, "agent "+st.AgentName+" has no configuration and no stack")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// deployRequest optionally carries a configuration to save first.
type deployRequest struct {
	Config     json.RawMessage   `json:"config"`
	Parameters map[string]string `json:"parameters"`
}

func (h *Handlers) DeployAgent(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "agentName")
	body, err := readBody(w, r)
	if err != nil {
		respondErr(w, err)
		return
	}
	var req deployRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	var cfg *models.AgentConfiguration
	if len(req.Config) > 0 && string(req.Config) != "null" {
		if cfg, err = configrepo.DecodeSubmission(req.Config); err != nil {
			respondErr(w, err)
			return
		}
	}
	out, err := h.Agents.DeployAgent(r.Context(), agentName, cfg, req.Parameters)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, outcomeStatus(out), out)
}

// DeleteAgent removes the agent's configuration and, with
// ?delete_infrastructure=true, its stack.
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	opts := deploy.DeleteOptions{}
	if v := r.URL.Query().Get("delete_infrastructure"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "delete_infrastructure must be a boolean")
			return
		}
		opts.DeleteInfrastructure = b
	}
	out, err := h.Agents.DeleteAgentCompletely(r.Context(), chi.URLParam(r, "agentName"), opts)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps a compound outcome onto an HTTP status. A failed
// outcome where every attempted step found nothing is a 404.
func outcomeStatus(out *deploy.Outcome) int {
	switch out.Status {
	case deploy.StatusSuccess:
		return http.StatusOK
	case deploy.StatusPartialSuccess:
		return http.StatusMultiStatus
	}
	for _, s := range out.Steps {
		if s.Status != deploy.StepNotFound && s.Status != deploy.StepSkipped {
			return http.StatusBadGateway
		}
	}
	return http.StatusNotFound
}

// ── Helpers ──────────────────────────────────────────────────

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &models.ValidationError{Field: "body", Reason: "request body too large"}
		}
		return nil, err
	}
	return body, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps domain errors onto HTTP statuses.
func respondErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	respondError(w, status, err.Error())
}

// StatusFor returns the HTTP status for an error returned by a contracts
// service.
func StatusFor(err error) int {
	var (
		validation *models.ValidationError
		cfgMissing *contracts.ConfigNotFound
		stkMissing *contracts.StackNotFound
		ownership  *contracts.StackOwnership
		imagePin   *contracts.ImagePin
		failure    *contracts.StackFailure
		timeout    *contracts.StackTimeout
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &cfgMissing), errors.As(err, &stkMissing):
		return http.StatusNotFound
	case errors.As(err, &ownership):
		return http.StatusConflict
	case errors.As(err, &imagePin):
		return http.StatusPreconditionFailed
	case errors.As(err, &failure):
		return http.StatusBadGateway
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
