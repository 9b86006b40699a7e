package llm

// ScriptPrompt instructs the model to produce a complete short-form video
// script as a single JSON object. The scene queries feed the stock footage
// search, so they must describe visuals rather than narration.
const ScriptPrompt = `You write scripts for vertical short-form videos under 60 seconds.
Respond with a single JSON object and nothing else, using this schema:
{
  "title": "video title, at most 90 characters",
  "description": "two or three sentences for the video description",
  "tags": ["up to ten short tags"],
  "scenes": [
    {
      "narration": "one or two spoken sentences",
      "query": "two to four words describing stock footage for this scene",
      "seconds": 6
    }
  ]
}
Rules:
- Between four and eight scenes, total narration under 55 seconds.
- The first scene must hook the viewer in the opening sentence.
- Queries describe concrete visuals (for example "city timelapse night"),
  never abstract concepts.
- Do not mention the channel, subscriptions, or other videos.`
