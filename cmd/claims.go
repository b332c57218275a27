package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/spigell/cv-validator/internal/validation"
)

// readClaimsFile decodes a JSON object of claims. Numbers keep their
// literal text.
func readClaimsFile(path string) (validation.Claims, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening claims file: %w", err)
	}
	defer f.Close()

	return decodeClaims(f)
}

func decodeClaims(r io.Reader) (validation.Claims, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var claims validation.Claims
	if err := decoder.Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}
	if claims == nil {
		return nil, errors.New("claims must be a JSON object")
	}

	return claims, nil
}

// parseClaimFlags merges key=value pairs into claims. Values stay strings.
func parseClaimFlags(claims validation.Claims, pairs []string) (validation.Claims, error) {
	if claims == nil {
		claims = validation.Claims{}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid claim %q, expected key=value", pair)
		}
		claims[key] = value
	}

	return claims, nil
}

// promptClaims asks for field/value pairs until an empty field name is entered.
func promptClaims() (validation.Claims, error) {
	claims := validation.Claims{}

	for {
		field := promptui.Prompt{Label: "Field name (empty to finish)"}
		name, err := field.Run()
		if err != nil {
			return nil, err
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return claims, nil
		}

		value := promptui.Prompt{
			Label: fmt.Sprintf("Claimed value for %s", name),
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("value must not be empty")
				}
				return nil
			},
		}
		claimed, err := value.Run()
		if err != nil {
			return nil, err
		}

		claims[name] = claimed
	}
}
