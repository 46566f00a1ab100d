package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Garblesnarff/infinite-realms-consistency/internal/domain/entities"
)

func newTurnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turns",
		Short: "Run turn-based play",
	}

	cmd.AddCommand(newTurnsRunCmd())

	return cmd
}

func newTurnsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run PARTICIPANT...",
		Short: "Start turn-taking and read actions interactively",
		Long: `Begins a turn order with the given participants and reads one action per
line from stdin on behalf of whoever holds the current turn:

  move LOCATION
  attack TARGET [DAMAGE]
  say TEXT...
  use ITEM [TARGET]
  skip
  quit

Each completed action is applied to the ledger before the next turn is
admitted. Turn numbering continues from the session's persisted history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurns(cmd, args)
		},
	}
}

func runTurns(cmd *cobra.Command, roster []string) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		current, err := d.Turns.HandleStart(ctx, globalActor, globalSession, roster)
		if err != nil {
			return fmt.Errorf("starting turn order: %w", err)
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Printf("turn %d: %s> ", current.Number, current.ParticipantID)
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" {
				break
			}
			if line == "skip" {
				next, err := d.Turns.HandleSkip(ctx, globalActor, globalSession)
				if err != nil {
					fmt.Printf("  skip failed: %v\n", err)
					continue
				}
				current = next
				continue
			}

			action, err := parseAction(line)
			if err != nil {
				fmt.Printf("  %v\n", err)
				continue
			}

			result, err := d.Turns.HandleSubmit(ctx, current.ParticipantID, globalSession, *action)
			if err != nil {
				if errors.Is(err, entities.ErrNotYourTurn) {
					fmt.Println("  turn already ended (timed out?)")
				} else {
					fmt.Printf("  action failed: %v\n", err)
					continue
				}
			}
			if result != nil {
				for _, r := range result.Results {
					if r.ConflictID != "" {
						fmt.Printf("  fact %s: %s (conflict %s)\n", r.FactID, r.Status, r.ConflictID)
					}
				}
			}

			next, err := d.Turns.HandleCurrent(ctx, globalActor, globalSession)
			if err != nil {
				return fmt.Errorf("reading current turn: %w", err)
			}
			current = next
		}
		return scanner.Err()
	})
}

func parseAction(line string) (*entities.Action, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "move":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: move LOCATION")
		}
		return &entities.Action{Kind: entities.ActionMove, Move: &entities.MovePayload{ToLocationID: fields[1]}}, nil
	case "attack":
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("usage: attack TARGET [DAMAGE]")
		}
		payload := &entities.AttackPayload{TargetID: fields[1]}
		if len(fields) == 3 {
			damage, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("parsing damage: %w", err)
			}
			payload.Damage = damage
		}
		return &entities.Action{Kind: entities.ActionAttack, Attack: payload}, nil
	case "say":
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: say TEXT...")
		}
		return &entities.Action{Kind: entities.ActionDialogue, Dialogue: &entities.DialoguePayload{Text: strings.Join(fields[1:], " ")}}, nil
	case "use":
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("usage: use ITEM [TARGET]")
		}
		payload := &entities.UseItemPayload{ItemID: fields[1]}
		if len(fields) == 3 {
			payload.TargetID = fields[2]
		}
		return &entities.Action{Kind: entities.ActionUseItem, UseItem: payload}, nil
	default:
		return nil, fmt.Errorf("unknown action %q (move, attack, say, use, skip, quit)", fields[0])
	}
}
