package tools

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/turnpike-ai/turnpike"
	"github.com/turnpike-ai/turnpike/src/chat"
)

type weatherReport struct {
	temp      int
	condition string
	humidity  string
}

var weatherData = map[string]weatherReport{
	"lagos":    {28, "Partly Cloudy", "78%"},
	"new york": {15, "Sunny", "45%"},
	"london":   {12, "Rainy", "85%"},
	"tokyo":    {18, "Clear", "60%"},
	"sydney":   {22, "Windy", "65%"},
	"paris":    {14, "Cloudy", "70%"},
	"dubai":    {32, "Sunny", "40%"},
	"mumbai":   {30, "Humid", "80%"},
}

var weatherConditions = []string{"Sunny", "Cloudy", "Rainy", "Windy", "Clear"}

type weatherInput struct {
	City string `json:"city" jsonschema_description:"The name of the city to check weather for."`
}

// WeatherTool reports simulated weather. Known cities use seeded data;
// unknown cities get a deterministic report derived from the city name, so
// repeated questions stay consistent.
type WeatherTool struct{}

func (w *WeatherTool) Spec() chat.ToolSpec {
	return chat.ToolSpec{
		Name:        "weather_checker",
		Description: "Get the current weather for a given city. Use this tool when asked about weather conditions, temperature, or forecasts.",
		InputSchema: GenerateSchema[weatherInput](),
		Examples: []map[string]any{
			{"city": "Lagos"},
			{"city": "New York"},
		},
	}
}

func (w *WeatherTool) Invoke(_ context.Context, req turnpike.ToolRequest) (turnpike.ToolResponse, error) {
	city, ok := req.Arguments["city"].(string)
	if !ok || strings.TrimSpace(city) == "" {
		return turnpike.ToolResponse{}, fmt.Errorf("missing or invalid 'city' argument")
	}

	data, ok := weatherData[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		data = syntheticWeather(city)
	}

	content := fmt.Sprintf(`Weather Report for %s:
- Temperature: %d C
- Conditions: %s
- Humidity: %s
- Forecast: Similar conditions expected tomorrow`,
		titleCase(city), data.temp, data.condition, data.humidity)
	return turnpike.ToolResponse{
		Content:  content,
		Metadata: map[string]string{"city": strings.ToLower(strings.TrimSpace(city))},
	}, nil
}

// syntheticWeather hashes the city name into plausible values.
func syntheticWeather(city string) weatherReport {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(city))))
	sum := h.Sum32()
	return weatherReport{
		temp:      10 + int(sum%26),
		condition: weatherConditions[int(sum/26)%len(weatherConditions)],
		humidity:  fmt.Sprintf("%d%%", 30+int(sum/130)%61),
	}
}

func titleCase(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
