package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"walletcsv/internal/application"
	"walletcsv/internal/assistant"

	"github.com/spf13/cobra"
)

var chatYes bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the wallet assistant",
	Long: `Start an interactive session with the LLM assistant. It can set the
wallet, scan chains, fetch transactions, search them and save the CSV.

Tools that hit the network or write files ask for confirmation first unless
--yes is given. Ctrl-C while a reply is being worked on cancels that reply.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatYes, "yes", false, "approve every tool call without asking")
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), appOptions{service: "chat"})
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	var confirmer assistant.Confirmer = assistant.ApproveAll
	if !chatYes {
		confirmer = promptConfirmer(in, out)
	}
	agent, err := a.newAgent(cmd.Context(), confirmer)
	if err != nil {
		return err
	}
	if agent == nil {
		return errors.New("no LLM provider configured: set LLM_PROVIDER or run 'walletcsv settings set llm_provider openai'")
	}

	session := assistant.NewSession()
	if address := a.setting(cmd.Context(), application.SettingLastAddress); address != "" {
		session.SetAddress(address)
	}
	if name := a.setting(cmd.Context(), application.SettingLastChain); name != "" {
		if chain, err := a.findChain(cmd.Context(), name); err == nil {
			session.SelectChain(chain)
		}
	}

	fmt.Fprintln(out, "Ask about a wallet's history. /reset clears the conversation, /quit leaves.")
	var history []assistant.Message
	for {
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		text := strings.TrimSpace(line)
		if err != nil && text == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}

		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			history = nil
			continue
		}

		history = append(history, assistant.Message{Role: assistant.RoleUser, Content: text})
		result, err := chatTurn(cmd.Context(), agent, session, history, func(status string) {
			fmt.Fprintf(errOut, "  [%s]\n", status)
		})
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}
		history = append(history, result.Status...)
		history = append(history, assistant.Message{Role: assistant.RoleAssistant, Content: result.Reply})
		fmt.Fprintln(out, result.Reply)

		state := session.State()
		chainName := ""
		if state.Chain != nil {
			chainName = state.Chain.Name
		}
		a.remember(cmd.Context(), state.Address, chainName)
	}
}

// chatTurn scopes the interrupt signal to one reply.
func chatTurn(parent context.Context, agent *assistant.Agent, session *assistant.Session, history []assistant.Message, onStatus func(string)) (assistant.ChatResult, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return agent.Chat(ctx, session, history, onStatus)
}

func promptConfirmer(in *bufio.Reader, out io.Writer) assistant.Confirmer {
	return assistant.ConfirmFunc(func(_ context.Context, _ assistant.ToolCall, description string) (bool, error) {
		fmt.Fprintf(out, "Allow: %s? [y/N] ", description)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	})
}
