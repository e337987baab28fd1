package celcondition

import (
	"fmt"

	"github.com/DIMO-Network/wa-ocr-webhook/internal/models"
	"github.com/google/cel-go/cel"
	celtypes "github.com/google/cel-go/common/types"
)

// PrepareCondition compiles a forward condition and checks that it yields a bool.
func PrepareCondition(celCondition string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("senderId", cel.StringType),
		cel.Variable("senderName", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("mediaId", cel.StringType),
		cel.Variable("hasMedia", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", err)
	}
	ast, issues := env.Compile(celCondition)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to program CEL expression: %w", err)
	}

	out, _, err := prg.Eval(recordVars(models.ForwardRecord{}))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL condition: %w", err)
	}
	if out.Type() != celtypes.BoolType {
		return nil, fmt.Errorf("output type is not bool: %s", out.Type())
	}
	return prg, nil
}

// EvaluateCondition reports whether record satisfies prg.
func EvaluateCondition(prg cel.Program, record models.ForwardRecord) (bool, error) {
	out, _, err := prg.Eval(recordVars(record))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL condition: %w", err)
	}
	return out.Type() == celtypes.BoolType && out.Value() == true, nil
}

func recordVars(record models.ForwardRecord) map[string]any {
	return map[string]any{
		"senderId":   record.SenderID,
		"senderName": record.SenderName,
		"text":       record.Text,
		"mediaId":    record.MediaID,
		"hasMedia":   record.HasMedia(),
	}
}
