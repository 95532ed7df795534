package ai

// ExtractGraphPrompt asks the model to extend the case knowledge graph with
// the entities, relationships and timecodes found in one transcript chunk.
// First %s is the current graph as JSON, second %s is the chunk text.
const ExtractGraphPrompt = `
# Task Context
You are an assistant that builds a knowledge graph from the transcript of an
investigative audio recording. You are given the graph built so far and one
new chunk of transcript to analyze.

# Background Data
The current knowledge graph is:
%s

# Detailed Task Description & Rules
Analyze the following transcript chunk and extend the knowledge graph:
%s

Follow these rules:
1. Use only these node types: 'Person', 'Location', 'Event', 'Evidence', 'Statement'.
2. Use human-readable identifiers for node IDs (e.g. "John_Doe"), never integers.
3. Relationship types must be general and timeless (e.g. "INVOLVED_IN", not "ARRESTED_ON_MAY_5").
4. Keep entity references consistent: if an entity already exists in the current graph, reuse its ID.
5. Only include information explicitly mentioned in the text.
6. 'Statement' nodes require a 'type' property (e.g. 'confession', 'denial', 'observation') and a 'content' property.
7. Provide a timecode (H:MM:SS, relative to the start of this chunk) for each node, marking when the entity or statement is first mentioned.

# Output Formatting
Respond with JSON containing 'nodes', 'relationships' and 'timecodes', for example:
{
  "nodes": [
    {"id": "John_Doe", "type": "Person", "properties": [{"name": "role", "value": "Suspect"}]},
    {"id": "Downtown_Park", "type": "Location", "properties": [{"name": "description", "value": "Place of the incident"}]},
    {"id": "Johns_Statement", "type": "Statement", "properties": [{"name": "type", "value": "Denial"}, {"name": "content", "value": "I was not at the park."}]}
  ],
  "relationships": [
    {"source": "John_Doe", "target": "Robbery_Incident", "type": "INVOLVED_IN"},
    {"source": "Johns_Statement", "target": "John_Doe", "type": "MADE_BY"}
  ],
  "timecodes": [
    {"id": "John_Doe", "times": ["0:02:15"]},
    {"id": "Downtown_Park", "times": ["0:01:05"]},
    {"id": "Johns_Statement", "times": ["0:02:50"]}
  ]
}
`

// SummaryPrompt is the system prompt for per-file transcript summaries.
const SummaryPrompt = `
# Task Context
You are an assistant that summarizes transcripts of investigative audio
recordings for case workers.

# Detailed Task Description & Rules
- Provide a concise summary of the transcript you are given.
- Name the participants and the key statements, events, locations and pieces of evidence that are mentioned.
- Do not speculate beyond what the transcript states.
`
