package di

import (
	"context"
	"fmt"
	"net/http"

	httpadapter "github.com/rpw1134/web-automation-agent/internal/adapter/http"
	"github.com/rpw1134/web-automation-agent/internal/adapter/tool"
	"github.com/rpw1134/web-automation-agent/internal/application/port/input"
	"github.com/rpw1134/web-automation-agent/internal/application/port/output"
	"github.com/rpw1134/web-automation-agent/internal/application/service"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/browser/htmlclean"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/browser/rod"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/config"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/llm/openai"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/logger"
	"github.com/rpw1134/web-automation-agent/internal/infrastructure/prompts"
	"github.com/rpw1134/web-automation-agent/internal/usecase/dispatcher"
	"github.com/rpw1134/web-automation-agent/internal/usecase/planner"
)

type Container struct {
	Config       *config.Config
	Logger       output.LoggerPort
	Resources    *service.ResourceRegistry
	Tools        output.ToolRegistry
	LLM          output.LLMPort
	SystemPrompt string
	TaskExecutor input.TaskExecutor
	Router       http.Handler
}

type Options struct {
	// Progress receives step updates; nil discards them.
	Progress output.ProgressPort
	// LLM replaces the OpenAI-compatible client, mainly for tests.
	LLM output.LLMPort
	// Launcher replaces the Chromium launcher, mainly for tests.
	Launcher service.EngineLauncher
}

// NewContainer wires every component. The browser is not started until Start.
func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	log, err := logger.NewLoggerAdapter(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	launch := opts.Launcher
	if launch == nil {
		browserLog := log.Named("browser")
		launch = func(ctx context.Context) (output.BrowserEngine, error) {
			engine, err := rod.Launch(ctx, cfg.Browser, browserLog)
			if err != nil {
				return nil, err
			}
			return engine, nil
		}
	}
	resources := service.NewResourceRegistry(launch, log.Named("resources"))

	tools := service.NewToolRegistry(tool.NewBrowserTools(
		resources,
		htmlclean.Clean,
		cfg.Browser.ScreenshotDir,
		log.Named("tool"),
	)...)

	systemPrompt, err := prompts.GenerateSystemPrompt(prompts.SystemPromptTemplate, tools)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to build system prompt: %w", err)
	}

	llm := opts.LLM
	if llm == nil {
		llm = openai.NewAdapter(cfg.LLM, log.Named("llm"))
	}

	uc := planner.New(
		llm,
		dispatcher.New(tools, log.Named("dispatcher")),
		resources,
		opts.Progress,
		log.Named("planner"),
		planner.Config{
			SystemPrompt: systemPrompt,
			Model:        cfg.LLM.Model,
			MaxTokens:    cfg.LLM.MaxTokens,
			Temperature:  cfg.LLM.Temperature,
			MaxSteps:     cfg.Agent.MaxSteps,
			TaskTimeout:  cfg.Agent.TaskTimeout,
		},
	)

	handler := httpadapter.NewHandler(uc, systemPrompt, log)
	router := httpadapter.NewRouter(handler, cfg.Logger.ServiceName, cfg.Logger.Format == "json")

	return &Container{
		Config:       cfg,
		Logger:       log,
		Resources:    resources,
		Tools:        tools,
		LLM:          llm,
		SystemPrompt: systemPrompt,
		TaskExecutor: uc,
		Router:       router,
	}, nil
}

// Start launches the browser engine.
func (c *Container) Start(ctx context.Context) error {
	return c.Resources.Start(ctx)
}

// Close tears down every browser context, the engine and the logger.
func (c *Container) Close(ctx context.Context) error {
	err := c.Resources.Shutdown(ctx)
	_ = c.Logger.Close()
	return err
}
