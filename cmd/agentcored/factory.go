package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/opsforge/agentcore/pkg/agent"
	"github.com/opsforge/agentcore/pkg/browser"
	"github.com/opsforge/agentcore/pkg/config"
	"github.com/opsforge/agentcore/pkg/coordinator"
	"github.com/opsforge/agentcore/pkg/events"
	"github.com/opsforge/agentcore/pkg/filestore"
	"github.com/opsforge/agentcore/pkg/flow"
	"github.com/opsforge/agentcore/pkg/llm"
	"github.com/opsforge/agentcore/pkg/mcp"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/runner"
	"github.com/opsforge/agentcore/pkg/sandbox"
	"github.com/opsforge/agentcore/pkg/sshnode"
	"github.com/opsforge/agentcore/pkg/store"
	"github.com/opsforge/agentcore/pkg/stream"
	"github.com/opsforge/agentcore/pkg/tool"
)

// sessionStreams adapts pkg/stream.Queue to coordinator.Streams, one
// input and one output Queue per session named by pkg/stream's own
// InputStream/OutputStream conventions (mirroring original_source's
// one-stream-pair-per-task layout, spec §4.1).
type sessionStreams struct {
	rdb redis.UniversalClient
}

func (s *sessionStreams) Input(sessionID string) coordinator.InputQueue {
	return stream.New(s.rdb, stream.InputStream(sessionID))
}

func (s *sessionStreams) Output(sessionID string) coordinator.OutputQueue {
	return stream.New(s.rdb, stream.OutputStream(sessionID))
}

// runnerFactory assembles a fresh *runner.Runner for a session about to
// (re)start its task: sandbox, browser, MCP client, tool executor and
// Plan–Act Flow are all rebuilt per (re)start, the same way
// original_source's AgentDomainService._create_task resolves a
// sandbox, browser and AgentTaskRunner from scratch every time (see
// pkg/coordinator's DESIGN.md section).
type runnerFactory struct {
	cfg          *config.Config
	sessions     store.SessionRepository
	agents       store.AgentRepository
	tickets      store.TicketRepository
	sshnodes     *sshnode.Service
	files        *filestore.Store
	llmClient    llm.Client
	mcpFactory   *mcp.ClientFactory
	mcpRegistry  *config.MCPServerRegistry
	mcpServerIDs []string
	rdb          redis.UniversalClient
	broadcaster  *events.Broadcaster
	dockerHost   string
}

func (f *runnerFactory) Build(ctx context.Context, session *model.Session) (*runner.Runner, error) {
	agentModel, err := f.agents.FindByID(ctx, session.AgentID)
	if err != nil {
		return nil, fmt.Errorf("agentcored: load agent %s: %w", session.AgentID, err)
	}
	if agentModel == nil {
		return nil, fmt.Errorf("agentcored: agent %s not found", session.AgentID)
	}

	dockerAPI, err := sandbox.NewDockerClientAdapter(f.dockerHost)
	if err != nil {
		return nil, fmt.Errorf("agentcored: docker client: %w", err)
	}
	sbx := sandbox.NewDockerSandbox(session.ID, sandbox.Config{
		Image:      f.cfg.Sandbox.Image,
		NamePrefix: f.cfg.Sandbox.NamePrefix,
		Network:    f.cfg.Sandbox.Network,
		TTL:        f.cfg.Sandbox.TTL(),
		Proxy:      f.cfg.Sandbox.Proxy,
		ChromeArgs: f.cfg.Sandbox.ChromeArgs,
	}, dockerAPI)

	br := browser.NewRodBrowser(f.cfg.Sandbox.Address, f.cfg.Sandbox.ChromeArgs)

	var mcpExecutor *mcp.ToolExecutor
	if len(f.mcpServerIDs) > 0 {
		mcpClient, err := f.mcpFactory.CreateClient(ctx, f.mcpServerIDs)
		if err != nil {
			return nil, fmt.Errorf("agentcored: mcp client: %w", err)
		}
		mcpExecutor = mcp.NewToolExecutor(mcpClient, f.mcpRegistry, f.mcpServerIDs, nil)
	}

	registry := tool.NewRegistry()
	registry.Register(tool.NewShellTool(sbx))
	registry.Register(tool.NewFileTool(sbx))
	registry.Register(tool.NewBrowserTool(br))
	registry.Register(tool.NewMessageTool())
	registry.Register(tool.NewSearchTool(f.cfg.Search, http.DefaultClient))
	registry.Register(tool.NewSSHNodeListTool(f.sshnodes, session.UserID))
	registry.Register(tool.NewSSHNodeMonitorTool(f.sshnodes, session.UserID))

	registry.Register(tool.NewSSHNodeExecTool(f.sshnodes, session.UserID, session.ID))

	if session.SessionType == model.SessionTicket {
		registry.Register(tool.NewTicketGetTool(f.tickets, session.ID))
		registry.Register(tool.NewTicketUpdateStatusTool(f.tickets, session.ID))
		registry.Register(tool.NewTicketReplyTool(f.tickets, session.ID))
	}

	executor := tool.NewCompositeExecutor(registry, mcpExecutor)

	defs, err := executor.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("agentcored: list tools: %w", err)
	}
	toolDefs := make([]llm.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		var schema any
		if err := json.Unmarshal([]byte(d.ParametersSchema), &schema); err != nil {
			schema = map[string]any{}
		}
		toolDefs = append(toolDefs, llm.ToolDefinition{Name: d.Name, Description: d.Description, InputSchema: schema})
	}

	planner, err := agent.NewPlannerAgent(f.llmClient, executor, f.agents, agentModel, toolDefs)
	if err != nil {
		return nil, fmt.Errorf("agentcored: planner agent: %w", err)
	}
	executionAgent, err := agent.NewExecutionAgent(f.llmClient, executor, f.agents, agentModel, toolDefs)
	if err != nil {
		return nil, fmt.Errorf("agentcored: execution agent: %w", err)
	}

	sessionLookup := flowSessionLookup{f.sessions}
	planActFlow := flow.NewPlanActFlow(session.ID, sessionLookup, planner, executionAgent)

	out := stream.New(f.rdb, stream.OutputStream(session.ID))
	input := stream.New(f.rdb, stream.InputStream(session.ID))
	publisher := runner.NewQueuePublisher(f.broadcaster, out)

	return runner.New(session.ID, session.UserID, planActFlow, sbx, br, executor, f.sessions, f.files, input, publisher), nil
}

// flowSessionLookup narrows store.SessionRepository to flow.SessionLookup.
type flowSessionLookup struct {
	sessions store.SessionRepository
}

func (l flowSessionLookup) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return l.sessions.FindByID(ctx, id)
}

func (l flowSessionLookup) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	return l.sessions.UpdateStatus(ctx, id, status)
}

// newAgentDefaults builds the AgentDefaults the coordinator stamps onto
// every freshly allocated Agent, straight from the LLM config group.
func newAgentDefaults(cfg *config.Config) coordinator.AgentDefaults {
	return coordinator.AgentDefaults{
		ModelName:   cfg.LLM.ModelName,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}
