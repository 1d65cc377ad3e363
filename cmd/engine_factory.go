package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"vtcode/pkg/engine/api"
	"vtcode/pkg/engine/cancel"
	vtconfig "vtcode/pkg/engine/config"
	"vtcode/pkg/engine/memory"
	mw "vtcode/pkg/engine/middleware"
	"vtcode/pkg/engine/policy"
	"vtcode/pkg/engine/pty"
	"vtcode/pkg/engine/runtime"
	"vtcode/pkg/engine/skill"
	"vtcode/pkg/engine/snapshot"
	"vtcode/pkg/engine/store"
	"vtcode/pkg/engine/systool"
	"vtcode/pkg/engine/toolpipeline"
	"vtcode/pkg/engine/tools"
)

func resolveWorkspaceRoot() (string, error) {
	if workspaceFlag != "" {
		abs, err := filepath.Abs(workspaceFlag)
		if err != nil {
			return "", err
		}
		if realWD, err := filepath.EvalSymlinks(abs); err == nil {
			abs = realWD
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return "", err
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if realWD, err := filepath.EvalSymlinks(wd); err == nil {
		wd = realWD
	}
	// Use workspace/ subdirectory as the working directory for file operations
	workspaceDir := filepath.Join(wd, "workspace")
	// Create if it doesn't exist
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return "", err
	}
	return workspaceDir, nil
}

func defaultSkillRoots(workspaceRoot string) []string {
	var roots []string

	// workspaceRoot points to workspace/ subdirectory, go up one level for project root
	projectRoot := filepath.Dir(workspaceRoot)

	// Project skills (<project>/.sea/skills). Highest priority.
	roots = append(roots, filepath.Join(projectRoot, ".sea", "skills"))

	// Legacy project skills path (<project>/workspace/.sea/skills).
	roots = append(roots, filepath.Join(workspaceRoot, ".sea", "skills"))

	// Global skills (~/.sea/<agent>/skills).
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".sea", agentFlag, "skills"))
	}

	// Built-in skills shipped with the repo.
	roots = append(roots, filepath.Join(projectRoot, "skills"))

	// Codex skills (optional).
	if codexHome := os.Getenv("CODEX_HOME"); codexHome != "" {
		roots = append(roots, filepath.Join(codexHome, "skills"))
	} else if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".codex", "skills"))
	}

	return roots
}

// newAPIEngine wires the full engine: stores, skill/memory subsystems, the
// tool registry behind a ToolPipeline, the persisted ToolPolicyGateway, the
// snapshot manager for pre-mutation backups, and a CancellationBroker the
// CLI's double-ESC listener arms per turn.
func newAPIEngine(workspaceRoot string) (api.Engine, *cancel.Broker, error) {
	vcfg, err := vtconfig.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", vtconfig.Path(), err)
	}

	sessionStore, err := store.NewFileSessionStore(workspaceRoot)
	if err != nil {
		return nil, nil, err
	}
	planStore, err := store.NewFilePlanStore(workspaceRoot)
	if err != nil {
		return nil, nil, err
	}
	eventLog, err := store.NewJSONLEventLog(workspaceRoot)
	if err != nil {
		return nil, nil, err
	}

	skillIndex, err := skill.NewDirSkillIndex(defaultSkillRoots(workspaceRoot)...)
	if err != nil {
		return nil, nil, err
	}

	mem := memory.NewStructuredManager(workspaceRoot)

	projectRoot := filepath.Dir(workspaceRoot)
	stateDir := filepath.Join(projectRoot, ".sea", "state")

	policyPath := filepath.Join(stateDir, "tool_policy.json")
	gateway, err := policy.NewGateway(policyPath)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range allowToolFlag {
		if err := gateway.SetPolicy(name, api.PolicyAllow); err != nil {
			return nil, nil, fmt.Errorf("--allow-tool %s: %w", name, err)
		}
	}
	for _, name := range denyToolFlag {
		if err := gateway.SetPolicy(name, api.PolicyDeny); err != nil {
			return nil, nil, fmt.Errorf("--deny-tool %s: %w", name, err)
		}
	}

	snapshots, err := snapshot.NewManager(stateDir, snapshot.Config{
		RetentionCount: vcfg.Snapshot.RetentionCount,
		RetentionAge:   vcfg.Snapshot.RetentionAge,
	})
	if err != nil {
		return nil, nil, err
	}

	ptyMgr := pty.NewManager(workspaceRoot, vcfg.Pty.OutputCapBytes)

	reg := tools.NewRegistry()
	reg.SetMaxOutputBytes(vcfg.MaxToolOutputBytes)
	reg.MustRegister(&systool.ListSkillsTool{SkillIndex: skillIndex})
	reg.MustRegister(&systool.ReadSkillTool{SkillIndex: skillIndex})
	reg.MustRegister(&systool.ActivateSkillTool{SkillIndex: skillIndex})
	reg.MustRegister(&systool.ReadTodosTool{PlanStore: planStore})
	reg.MustRegister(&systool.WriteTodosTool{PlanStore: planStore})
	reg.MustRegister(&systool.ReadMemoryTool{Manager: mem})
	reg.MustRegister(&systool.UpdateMemoryTool{Manager: mem})
	reg.MustRegister(&systool.UnderstandIntentTool{})

	if enableToolsFlag {
		webFetchHosts := splitAllowlist(os.Getenv("WEB_FETCH_ALLOWLIST"))
		defaults := tools.DefaultRegistry(tools.DefaultRegistryConfig{
			WorkspaceRoot: workspaceRoot,
			PtyManager:    ptyMgr,
			WebFetchHosts: webFetchHosts,
		})
		for _, t := range defaults.All() {
			reg.MustRegister(t)
		}
		// run_skill_script needs skill index for path resolution.
		reg.MustRegister(tools.NewRunSkillScriptTool(workspaceRoot, skillIndex))
	}

	pipeline := toolpipeline.New(reg)
	pipeline.SetDefaultTimeout(vcfg.ToolTimeout)
	pipeline.SetTimeout("run_terminal_cmd", vcfg.ToolTimeout*5)
	pipeline.SetTimeout("web_fetch", vcfg.ToolTimeout/4)

	var llm runtime.LLM = &runtime.MockLLM{}
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		baseURL := os.Getenv("LLM_BASE_URL")
		model := os.Getenv("LLM_MODEL")
		if modelFlag != "" {
			model = modelFlag
		}
		openai := runtime.NewOpenAILLM(baseURL, apiKey, model)
		llm = openai
	}

	// Read compression settings from environment
	autoCompressThreshold := 50 // Default
	if v := os.Getenv("AUTO_COMPRESS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			autoCompressThreshold = n
		}
	}
	compressKeepTurns := 3 // Default
	if v := os.Getenv("COMPRESS_KEEP_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			compressKeepTurns = n
		}
	}

	// Filter historical tool messages (default: true for smaller context)
	filterHistoryTools := true
	if v := os.Getenv("FILTER_HISTORY_TOOLS"); v == "false" || v == "0" {
		filterHistoryTools = false
	}

	engine, err := runtime.NewEngine(runtime.EngineConfig{
		LLM:                   llm,
		Tools:                 reg,
		Policy:                gateway,
		Pipeline:              pipeline,
		Snapshots:             snapshots,
		Middlewares:           []runtime.Middleware{mw.NewPersonaMiddleware(workspaceRoot, filepath.Dir(workspaceRoot), agentFlag), mw.NewBasePromptMiddleware(workspaceRoot), mw.NewSkillsMiddleware(skillIndex), mw.NewMemoryMiddleware(mem), mw.NewPlanningMiddleware(planStore)},
		WorkspaceRoot:         workspaceRoot,
		SkillIndex:            skillIndex,
		SessionStore:          sessionStore,
		PlanStore:             planStore,
		EventLog:              eventLog,
		AutoCompressThreshold: autoCompressThreshold,
		CompressKeepTurns:     compressKeepTurns,
		FilterHistoryTools:    filterHistoryTools,
		MaxSteps:              vcfg.MaxSteps,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, cancel.NewBroker(), nil
}

func splitAllowlist(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
