package speech

// TTSRequest is the JSON body posted to the ElevenLabs streaming endpoint.
type TTSRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}
