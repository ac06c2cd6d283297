package mcp

import (
	"context"

	mcp "github.com/fredcamaral/gomcp-sdk"

	"dementia-mcp/internal/memory"
)

// projectParam is shared by every project-scoped tool.
func projectParam() map[string]interface{} {
	return mcp.StringParam("Project name override. Defaults to the project bound to the current session.", false)
}

func stringArray(description string) map[string]interface{} {
	return mcp.ArraySchema(description, map[string]interface{}{"type": "string"})
}

// registerTools publishes every memory core operation.
func (ms *MemoryServer) registerTools() {
	ms.registerProjectTools()
	ms.registerContextTools()
	ms.registerSearchTools()
	ms.registerInsightTools()
	ms.registerHandoverTools()
	ms.registerTransferTools()
	ms.registerFileTagTools()
	ms.logger.Info("MCP tools registered", "count", 22)
}

func (ms *MemoryServer) registerProjectTools() {
	ms.register(mcp.NewTool(
		"memory_health",
		"Report the health of the memory service: database connectivity and embedding availability.",
		mcp.ObjectSchema("Health check parameters", map[string]interface{}{}, nil),
	), func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		return ms.engine.Health(ctx), nil
	})

	ms.register(mcp.NewTool(
		"list_projects",
		"List every project namespace, marking the one bound to this session.",
		mcp.ObjectSchema("List parameters", map[string]interface{}{}, nil),
	), func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		projects, err := ms.engine.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"projects": projects, "count": len(projects)}, nil
	})

	ms.register(mcp.NewTool(
		"create_project",
		"Create a project namespace. The name is sanitized into a schema-safe identifier; two names that collide after sanitization are rejected.",
		mcp.ObjectSchema("Creation parameters", map[string]interface{}{
			"name": mcp.StringParam("Project name, free form.", true),
		}, []string{"name"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		project, err := ms.engine.CreateProject(ctx, args.Name)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"project": project}, nil
	})

	ms.register(mcp.NewTool(
		"select_project_for_session",
		"Bind the current session to a project. Required before any context operation.",
		mcp.ObjectSchema("Selection parameters", map[string]interface{}{
			"name": mcp.StringParam("Project name to bind.", true),
		}, []string{"name"}),
	), ms.handleSelectProject)

	ms.register(mcp.NewTool(
		"switch_project",
		"Rebind the current session to another project.",
		mcp.ObjectSchema("Switch parameters", map[string]interface{}{
			"name": mcp.StringParam("Project name to switch to.", true),
		}, []string{"name"}),
	), ms.handleSelectProject)
}

func (ms *MemoryServer) handleSelectProject(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(params, &args); err != nil {
		return nil, err
	}
	project, err := ms.engine.SelectProject(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	return selectProjectResult(args.Name, ms.engine.SchemaName(project)), nil
}

// selectProjectResult echoes the caller's name and reports the derived
// namespace.
func selectProjectResult(name, schema string) map[string]interface{} {
	return map[string]interface{}{"project": name, "schema": schema}
}

type lockArgs struct {
	Content     string   `json:"content"`
	Topic       string   `json:"topic"`
	Tags        []string `json:"tags"`
	Priority    string   `json:"priority"`
	VersionBase string   `json:"version_base"`
	Project     string   `json:"project"`
}

func (a lockArgs) request() memory.LockRequest {
	return memory.LockRequest{
		Content:     a.Content,
		Topic:       a.Topic,
		Tags:        a.Tags,
		Priority:    a.Priority,
		VersionBase: a.VersionBase,
		Project:     a.Project,
	}
}

func lockSchema() map[string]interface{} {
	return map[string]interface{}{
		"content":      mcp.StringParam("The content to lock.", true),
		"topic":        mcp.StringParam("Label for the context; versions accumulate under it.", true),
		"tags":         stringArray("Optional tags, folded into key concepts and searchable."),
		"priority":     mcp.StringParam("One of always_check, important, reference. Auto-detected from content when omitted.", false),
		"version_base": mcp.StringParam("Existing version to branch from, as M.m. Omit to extend the latest.", false),
		"project":      projectParam(),
	}
}

func (ms *MemoryServer) registerContextTools() {
	ms.register(mcp.NewTool(
		"lock_context",
		"Store an immutable, versioned context. A new lock on an existing topic creates the next minor version; locking against an older version_base creates a flagged branch.",
		mcp.ObjectSchema("Lock parameters", lockSchema(), []string{"content", "topic"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args lockArgs
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.LockContext(ctx, args.request())
	})

	ms.register(mcp.NewTool(
		"recall_context",
		"Retrieve a locked context by topic, latest version by default, and record the access.",
		mcp.ObjectSchema("Recall parameters", map[string]interface{}{
			"topic":   mcp.StringParam("Label to recall.", true),
			"version": mcp.StringParam("Exact version as M.m, or 'latest'.", false),
			"project": projectParam(),
		}, []string{"topic"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Topic   string `json:"topic"`
			Version string `json:"version"`
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		lock, err := ms.engine.RecallContext(ctx, args.Topic, args.Version, args.Project)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content":  lock.Content,
			"version":  lock.Version.String(),
			"metadata": lock.Metadata,
			"preview":  lock.Preview,
			"priority": lock.Priority,
		}, nil
	})

	ms.register(mcp.NewTool(
		"unlock_context",
		"Delete context versions, archiving them first by default. Versions marked always_check require force.",
		mcp.ObjectSchema("Unlock parameters", map[string]interface{}{
			"topic":   mcp.StringParam("Label to unlock.", true),
			"version": mcp.StringParam("Exact version as M.m, or 'all'.", false),
			"force":   mcp.BooleanParam("Unlock always_check contexts without confirmation.", false),
			"archive": mcp.BooleanParam("Copy versions to the archive before deleting. Defaults to true.", false),
			"project": projectParam(),
		}, []string{"topic"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Topic   string `json:"topic"`
			Version string `json:"version"`
			Force   bool   `json:"force"`
			Archive *bool  `json:"archive"`
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		archive := true
		if args.Archive != nil {
			archive = *args.Archive
		}
		return ms.engine.UnlockContext(ctx, args.Topic, args.Version, args.Force, archive, args.Project)
	})

	ms.register(mcp.NewTool(
		"batch_lock_contexts",
		"Lock several contexts in one call. The batch is atomic: either every context lands or none does.",
		mcp.ObjectSchema("Batch lock parameters", map[string]interface{}{
			"contexts": mcp.ArraySchema("Lock requests. A per-item project, when set, must match the batch project.", mcp.ObjectSchema("One lock request", lockSchema(), []string{"content", "topic"})),
			"project":  projectParam(),
		}, []string{"contexts"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Contexts []lockArgs `json:"contexts"`
			Project  string     `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		reqs := make([]memory.LockRequest, len(args.Contexts))
		for i, c := range args.Contexts {
			reqs[i] = c.request()
		}
		results, err := ms.engine.BatchLockContexts(ctx, reqs, args.Project)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"locked": results, "count": len(results)}, nil
	})

	ms.register(mcp.NewTool(
		"batch_recall_contexts",
		"Recall the latest version of several topics in one call. A single missing topic fails the whole batch.",
		mcp.ObjectSchema("Batch recall parameters", map[string]interface{}{
			"topics":  stringArray("Labels to recall."),
			"project": projectParam(),
		}, []string{"topics"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Topics  []string `json:"topics"`
			Project string   `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		locks, err := ms.engine.BatchRecallContexts(ctx, args.Topics, args.Project)
		if err != nil {
			return nil, err
		}
		contexts := make([]map[string]interface{}, len(locks))
		for i, lock := range locks {
			contexts[i] = map[string]interface{}{
				"topic":    lock.Label,
				"content":  lock.Content,
				"version":  lock.Version.String(),
				"metadata": lock.Metadata,
				"preview":  lock.Preview,
			}
		}
		return map[string]interface{}{"contexts": contexts, "count": len(contexts)}, nil
	})
}

func (ms *MemoryServer) registerSearchTools() {
	ms.register(mcp.NewTool(
		"search_contexts",
		"Keyword search over the project's contexts, ranked by field relevance. Results cover the whole project, not just this session.",
		mcp.ObjectSchema("Search parameters", map[string]interface{}{
			"query":    mcp.StringParam("Substring to search for.", true),
			"priority": mcp.StringParam("Restrict to one priority level.", false),
			"tags":     stringArray("Restrict to contexts carrying any of these tags."),
			"limit":    mcp.NumberParam("Maximum results, default 10.", false),
			"project":  projectParam(),
		}, []string{"query"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Query    string   `json:"query"`
			Priority string   `json:"priority"`
			Tags     []string `json:"tags"`
			Limit    int      `json:"limit"`
			Project  string   `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		hits, err := ms.engine.SearchContexts(ctx, memory.SearchRequest{
			Query:    args.Query,
			Priority: args.Priority,
			Tags:     args.Tags,
			Limit:    args.Limit,
			Project:  args.Project,
		})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": emptyIfNil(hits), "count": len(hits)}, nil
	})

	ms.register(mcp.NewTool(
		"semantic_search_contexts",
		"Vector search over the project's contexts. Falls back to keyword search with a warning when embeddings are unavailable.",
		mcp.ObjectSchema("Semantic search parameters", map[string]interface{}{
			"query":   mcp.StringParam("Free-form query text.", true),
			"limit":   mcp.NumberParam("Maximum results, default 10.", false),
			"project": projectParam(),
		}, []string{"query"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Query   string `json:"query"`
			Limit   int    `json:"limit"`
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		result, err := ms.engine.SemanticSearchContexts(ctx, args.Query, args.Limit, args.Project)
		if err != nil {
			return nil, err
		}
		out := map[string]interface{}{
			"results": emptyIfNil(result.Hits),
			"count":   len(result.Hits),
		}
		if result.Degraded {
			out["degraded"] = true
			out["warning"] = result.Warning
		}
		return out, nil
	})

	ms.register(mcp.NewTool(
		"check_contexts",
		"Pre-commit advisor: given text describing a pending action, return always_check contexts and contexts whose key concepts overlap the text.",
		mcp.ObjectSchema("Check parameters", map[string]interface{}{
			"text":    mcp.StringParam("Description of the pending action.", true),
			"project": projectParam(),
		}, []string{"text"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Text    string `json:"text"`
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		hits, err := ms.engine.CheckContexts(ctx, args.Text, args.Project)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"matches": emptyIfNil(hits), "count": len(hits)}, nil
	})
}

func (ms *MemoryServer) registerInsightTools() {
	ms.register(mcp.NewTool(
		"explore_context_tree",
		"Summarize every context in the project, grouped by label with per-version detail, or flat.",
		mcp.ObjectSchema("Explore parameters", map[string]interface{}{
			"flat":    mcp.BooleanParam("Return a flat list instead of grouping by label.", false),
			"project": projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Flat    bool   `json:"flat"`
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.ExploreContextTree(ctx, args.Flat, args.Project)
	})

	ms.register(mcp.NewTool(
		"context_dashboard",
		"Project health summary: priority distribution, storage size, access extremes, staleness warnings and embedding coverage.",
		mcp.ObjectSchema("Dashboard parameters", map[string]interface{}{
			"project": projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.ContextDashboard(ctx, args.Project)
	})
}

func (ms *MemoryServer) registerHandoverTools() {
	ms.register(mcp.NewTool(
		"get_last_handover",
		"Return the freshest handover: the live session summary when the session is still active, otherwise the latest packaged handover.",
		mcp.ObjectSchema("Handover parameters", map[string]interface{}{
			"project": projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.GetLastHandover(ctx, args.Project)
	})

	ms.register(mcp.NewTool(
		"sleep",
		"Package the session into a handover: records the structured summary and, when an LLM is configured, a short prose narrative.",
		mcp.ObjectSchema("Sleep parameters", map[string]interface{}{
			"work_done":         stringArray("What was accomplished this session."),
			"tools_used":        stringArray("Tools and commands that were used."),
			"next_steps":        stringArray("What the next session should do."),
			"important_context": map[string]interface{}{"type": "object", "description": "Key facts the next session must know.", "additionalProperties": true},
			"project":           projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			WorkDone         []string               `json:"work_done"`
			ToolsUsed        []string               `json:"tools_used"`
			NextSteps        []string               `json:"next_steps"`
			ImportantContext map[string]interface{} `json:"important_context"`
			Project          string                 `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.Sleep(ctx, memory.SleepRequest{
			WorkDone:         args.WorkDone,
			ToolsUsed:        args.ToolsUsed,
			NextSteps:        args.NextSteps,
			ImportantContext: args.ImportantContext,
			Project:          args.Project,
		})
	})

	ms.register(mcp.NewTool(
		"wake_up",
		"Resume from the prior handover: loads the previous session's handover plus this session's state.",
		mcp.ObjectSchema("Wake parameters", map[string]interface{}{
			"project": projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.WakeUp(ctx, args.Project)
	})
}

func (ms *MemoryServer) registerTransferTools() {
	ms.register(mcp.NewTool(
		"export_project",
		"Serialize a project's contexts, memory entries and bound sessions into a portable payload.",
		mcp.ObjectSchema("Export parameters", map[string]interface{}{
			"project": projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			Project string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		payload, err := ms.engine.ExportProject(ctx, args.Project)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"export": payload}, nil
	})

	ms.register(mcp.NewTool(
		"import_project",
		"Insert an exported payload under a target project, preserving every (label, version) pair.",
		mcp.ObjectSchema("Import parameters", map[string]interface{}{
			"target_project": mcp.StringParam("Project to import into. Created if missing.", true),
			"data":           map[string]interface{}{"type": "object", "description": "Payload produced by export_project.", "additionalProperties": true},
		}, []string{"target_project", "data"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			TargetProject string                `json:"target_project"`
			Data          *memory.ExportPayload `json:"data"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.ImportProject(ctx, args.TargetProject, args.Data)
	})
}

func (ms *MemoryServer) registerFileTagTools() {
	ms.register(mcp.NewTool(
		"tag_file",
		"Record a content fingerprint for a workspace file under this session, so later sessions can detect outside edits.",
		mcp.ObjectSchema("Tag parameters", map[string]interface{}{
			"file_path":   mcp.StringParam("Workspace-relative file path.", true),
			"fingerprint": mcp.StringParam("Content fingerprint, typically a digest of the file.", true),
			"metadata":    map[string]interface{}{"type": "object", "description": "Optional extra fields to store with the tag.", "additionalProperties": true},
			"project":     projectParam(),
		}, []string{"file_path", "fingerprint"}),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			FilePath    string                 `json:"file_path"`
			Fingerprint string                 `json:"fingerprint"`
			Metadata    map[string]interface{} `json:"metadata"`
			Project     string                 `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		return ms.engine.TagFile(ctx, args.FilePath, args.Fingerprint, args.Metadata, args.Project)
	})

	ms.register(mcp.NewTool(
		"get_file_tags",
		"List recorded file fingerprints for the project, across all sessions, optionally narrowed to one path.",
		mcp.ObjectSchema("Tag query parameters", map[string]interface{}{
			"file_path": mcp.StringParam("Narrow to one file path.", false),
			"project":   projectParam(),
		}, nil),
	), func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		var args struct {
			FilePath string `json:"file_path"`
			Project  string `json:"project"`
		}
		if err := decodeArgs(params, &args); err != nil {
			return nil, err
		}
		tags, err := ms.engine.FileTags(ctx, args.FilePath, args.Project)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"tags": emptyIfNil(tags), "count": len(tags)}, nil
	})
}

// emptyIfNil keeps empty result lists serialized as [] instead of null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
