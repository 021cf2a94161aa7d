package worker

// synthWorkerScript is the embedded reference worker. It runs under uvx in
// its own Python environment, loads the synthesis model exactly once, caches
// per-speaker reference encodings, and answers each stdin task line with one
// result line on stdout. Stdout carries only result JSON; everything else
// goes to stderr.
const synthWorkerScript = `#!/usr/bin/env python3
import json
import os
import sys
import time

SENTINEL = "__end_of_work__"


def log(message):
    print(message, file=sys.stderr, flush=True)


def emit(payload):
    sys.stdout.write(json.dumps(payload) + "\n")
    sys.stdout.flush()


def main():
    model_id = os.environ.get("REVOICE_MODEL_ID", "tts_models/multilingual/multi-dataset/xtts_v2")
    language = os.environ.get("REVOICE_TARGET_LANGUAGE", "en")
    device = os.environ.get("REVOICE_DEVICE", "cpu")
    sample_rate = int(os.environ.get("REVOICE_SAMPLE_RATE", "24000"))
    staging_dir = os.environ.get("REVOICE_STAGING_DIR", ".")

    log(f"loading model {model_id} on {device}")
    import soundfile
    from TTS.api import TTS

    tts = TTS(model_id).to(device)
    model = tts.synthesizer.tts_model
    log("model ready")

    # One cache entry per speaker, computed on that speaker's first task and
    # reused for every later segment of the same speaker.
    latents = {}

    for raw in sys.stdin:
        line = raw.strip()
        if not line:
            continue
        if line == SENTINEL:
            break
        started = time.monotonic()
        try:
            task = json.loads(line)
        except ValueError as exc:
            log(f"discarding malformed task line: {exc}")
            continue
        segment_id = task.get("segment_id", "")
        try:
            speaker_id = task["speaker_id"]
            reference = task["reference_audio_path"]
            text = task["target_text"]
            if speaker_id not in latents:
                log(f"encoding reference audio for speaker {speaker_id}")
                latents[speaker_id] = model.get_conditioning_latents(audio_path=reference)
            gpt_cond, speaker_emb = latents[speaker_id]
            out = model.inference(
                text=text,
                language=language,
                gpt_cond_latent=gpt_cond,
                speaker_embedding=speaker_emb,
            )
            audio_path = os.path.join(staging_dir, f"{segment_id}.wav")
            soundfile.write(audio_path, out["wav"], sample_rate)
            elapsed_ms = int((time.monotonic() - started) * 1000)
            emit({
                "segment_id": segment_id,
                "status": "ok",
                "audio_path": audio_path,
                "elapsed_ms": elapsed_ms,
            })
        except Exception as exc:
            elapsed_ms = int((time.monotonic() - started) * 1000)
            log(f"synthesis failed for segment {segment_id}: {exc}")
            emit({
                "segment_id": segment_id,
                "status": "error",
                "reason": str(exc),
                "elapsed_ms": elapsed_ms,
            })

    log("end of work, exiting")


if __name__ == "__main__":
    main()
`
