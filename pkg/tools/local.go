package tools

// NewDefaultRegistry builds the standard tool set for a workspace.
// Destructive tools share the confirmation gate; everything else runs
// unattended.
func NewDefaultRegistry(workspace *Workspace, todoStore *TodoStore, confirm ConfirmFunc) (*Registry, error) {
	r := NewRegistry()
	search := NewSearchTool(workspace)
	toolSet := []Tool{
		NewReadFileTool(workspace),
		NewCreateFileTool(workspace),
		NewEditTool(workspace, confirm),
		NewMultiEditTool(workspace, confirm),
		NewShellTool(workspace),
		search,
		NewGlobTool(search),
		NewGrepTool(search),
		NewLsTool(workspace),
		NewTodoReadTool(todoStore),
		NewTodoWriteTool(todoStore),
	}
	for _, tool := range toolSet {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}
