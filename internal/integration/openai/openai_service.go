package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent may choose
const (
	CommandGetBulletin   = "GetBulletin"
	CommandGetZone       = "GetZone"
	CommandGetComune     = "GetComune"
	CommandGetSensors    = "GetSensors"
	CommandGetReservoirs = "GetReservoirs"
	CommandGetAvalanche  = "GetAvalanche"
	CommandGeneralQuery  = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute: GetBulletin, GetZone, GetComune, GetSensors, GetReservoirs, GetAvalanche or GeneralQuery"`
	Argument    string `json:"argument" jsonschema_description:"Alert zone (e.g. BASI A1), municipality name or sensor category key, empty when not applicable"`
	UserMessage string `json:"user_message" jsonschema_description:"A short message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, zones, categories []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
// Extra request options are mostly used to point the client at a test server.
func NewOpenAIService(apiKey string, opts ...option.RequestOption) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, zones, categories []string) (*AgentResponse, error) {
	systemPrompt := fmt.Sprintf(`You are the assistant of a civil protection alert bot for the Basilicata region in Italy.
You read the regional criticality bulletin, real-time sensors, reservoirs and avalanche data for the user.
Be short, clear and calm. Never invent alert levels: the bot will fetch the data.

Alert zones: %s
Sensor categories: %s

Behavior:
1. The user asks about today's or tomorrow's alerts in general: command_name = "GetBulletin".
2. The user names an alert zone: command_name = "GetZone", argument = the zone exactly as in the list.
3. The user names a town or municipality: command_name = "GetComune", argument = the municipality name in Italian.
4. The user asks about rain, rivers, wind, temperature or snow readings: command_name = "GetSensors", argument = the matching category key or "".
5. The user asks about dams, reservoirs or water availability: command_name = "GetReservoirs".
6. The user asks about avalanches or snow danger: command_name = "GetAvalanche".
7. Anything else (greetings, small talk): command_name = "GeneralQuery", argument = "".

user_message is a one-line reply in the user's language.
Output **strictly** in JSON.`, strings.Join(zones, ", "), strings.Join(categories, ", "))

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, argument and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4oMini,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var agentResp AgentResponse
	err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &agentResp)
	if err != nil {
		slog.Error("failed to unmarshal OpenAI response", "error", err, "raw", chat.Choices[0].Message.Content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	return &agentResp, nil
}
