package nlquery

const databaseSchema = `Database Schema for IoT Fleet Monitor:

Table: devices
- id: integer (primary key)
- name: text (device name)
- location: text (device location)
- active: boolean (device status)
- created_at, updated_at: timestamp
- deleted_at: timestamp (soft delete marker, almost always NULL)

Table: readings
- id: integer (primary key)
- device_id: integer (foreign key to devices.id)
- values: jsonb (sensor payload, typical keys: temperature, humidity, batteryLevel)
- timestamp: timestamp (when the reading was taken)

Table: alerts
- id: text (primary key)
- device_id: integer (foreign key to devices.id)
- reading_id: integer (the reading that triggered the alert)
- field: text (the sensor field that breached its threshold)
- value: double precision
- threshold: double precision
- observed_at: timestamp

Relationships:
- One device has many readings and many alerts (join on device_id)

Sensor values live inside the readings.values jsonb column. Extract them
with the ->> operator and cast, for example (values->>'temperature')::float.

Critical thresholds:
- Critical temperature: > 80 degrees Celsius
- Low battery: < 20 percent`

const sqlGenerationSystemPrompt = `You are a PostgreSQL expert. Convert natural language queries to SQL.

Rules:
1. Return ONLY valid PostgreSQL SQL - no explanations or markdown
2. Use proper JOIN syntax when querying multiple tables
3. Always include appropriate WHERE clauses for filters
4. Use aggregate functions (COUNT, AVG, MAX, MIN) when appropriate
5. For time-based queries, use timestamp comparisons
6. Sensor values are jsonb, extract and cast them like (values->>'temperature')::float
7. Limit results to 100 rows unless specified
8. Use descriptive column aliases

Database Schema:
%s

Examples:
Query: "Show all devices"
SQL: SELECT id, name, location, active FROM devices LIMIT 100;

Query: "Devices with temperature above 80"
SQL: SELECT DISTINCT d.id, d.name, d.location, (r.values->>'temperature')::float AS temperature
     FROM devices d
     JOIN readings r ON d.id = r.device_id
     WHERE (r.values->>'temperature')::float > 80
     ORDER BY temperature DESC
     LIMIT 100;

Query: "Average temperature per device"
SQL: SELECT d.name, d.location, AVG((r.values->>'temperature')::float) AS avg_temperature
     FROM devices d
     JOIN readings r ON d.id = r.device_id
     GROUP BY d.id, d.name, d.location
     ORDER BY avg_temperature DESC;`

const sqlValidationPrompt = `Validate this SQL query for safety.

SQL: %s

Check for:
1. Only SELECT statements (no INSERT, UPDATE, DELETE, DROP)
2. No dangerous operations
3. Valid PostgreSQL syntax

Respond with only "SAFE" or "UNSAFE: reason"`

const responseFormattingPrompt = `You are a helpful IoT monitoring assistant.
Summarize the database query results in clear, concise natural language.

Original Query: %s
Results: %s

Provide:
1. A brief summary of findings
2. Key insights or notable patterns
3. Any recommendations if relevant

Keep the response professional and technical.`

// ExampleCategory groups example questions that the query endpoint
// understands, served verbatim on the examples endpoint.
type ExampleCategory struct {
	Category string   `json:"category"`
	Queries  []string `json:"queries"`
}

var exampleQueries = []ExampleCategory{
	{
		Category: "Device Queries",
		Queries: []string{
			"Show all devices",
			"List active devices",
			"Show devices in Server Room",
		},
	},
	{
		Category: "Temperature Queries",
		Queries: []string{
			"Devices with temperature above 80",
			"Show critical temperature readings",
			"What's the highest temperature recorded?",
		},
	},
	{
		Category: "Battery Queries",
		Queries: []string{
			"Show devices with low battery",
			"What's the average battery level?",
			"Devices with battery below 20%",
		},
	},
	{
		Category: "Aggregation Queries",
		Queries: []string{
			"Average temperature per device",
			"Count devices by location",
			"Show humidity statistics",
		},
	},
	{
		Category: "Time-Based Queries",
		Queries: []string{
			"Show readings from today",
			"Recent high temperature alerts",
			"Latest reading for each device",
		},
	},
}
