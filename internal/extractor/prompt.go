package extractor

// AnalysisPrompt asks for the structured call analysis. The audio is attached
// after it in the same request.
const AnalysisPrompt = `You are an expert Sales Quality Analyst. Your goal is to analyze audio sales calls.

Perform the following steps on the attached audio recording:

STEP 1: TRANSCRIPTION & DIARIZATION
- Internally transcribe the audio and separate the AGENT from the CUSTOMER.
- Do not output the transcript.

STEP 2: CLASSIFICATION
- call_type: "SALE" if the agent is trying to close a purchase, otherwise "ENQUIRY".
- call_outcome: "SUCCESSFUL" if the customer committed (bought, booked, agreed to the next step),
  otherwise "UNSUCCESSFUL".

STEP 3: CONTEXT
- Summarize the call: what did the customer need, what was the agent's goal, how did it end?

STEP 4: VARIABLE SCORING
- Score the agent from 1 to 10 on:
  1. Empathy (did they listen?)
  2. Persuasion (did they move the customer toward a decision?)
  3. Product Knowledge (did they answer confidently and correctly?)
  4. Objection Handling (how did they manage "no"?)
- Add one short note explaining the scores.

STEP 5: GOLDEN SENTENCES
- Only when call_outcome is "SUCCESSFUL": list the exact sentences spoken by the AGENT that moved
  the sale forward or built strong rapport.
- When call_outcome is "UNSUCCESSFUL" return an empty list.

OUTPUT FORMAT
Return ONLY valid JSON with exactly this structure (no markdown, no commentary):

{
  "call_type": "SALE",
  "call_outcome": "SUCCESSFUL",
  "transcript_summary": "Short summary here...",
  "variables_analysis": {
    "empathy_score": 8,
    "persuasion_score": 7,
    "product_knowledge_score": 9,
    "objection_handling_score": 6,
    "notes": "Agent was good but rushed the closing."
  },
  "golden_sentences": [
    "I understand your concern, and that is exactly why this plan fits you."
  ]
}
`

// analysisSchema validates the model output before it is decoded.
const analysisSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["variables_analysis"],
  "properties": {
    "call_type": {"type": "string"},
    "call_outcome": {"type": "string"},
    "transcript_summary": {"type": ["string", "null"]},
    "variables_analysis": {
      "type": "object",
      "required": ["empathy_score", "persuasion_score", "product_knowledge_score", "objection_handling_score"],
      "properties": {
        "empathy_score": {"$ref": "#/$defs/score"},
        "persuasion_score": {"$ref": "#/$defs/score"},
        "product_knowledge_score": {"$ref": "#/$defs/score"},
        "objection_handling_score": {"$ref": "#/$defs/score"},
        "notes": {"type": ["string", "null"]}
      }
    },
    "golden_sentences": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    }
  },
  "$defs": {
    "score": {"type": "integer", "minimum": 1, "maximum": 10}
  }
}`
